package stubserver

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/foodcom/morsel/internal/api"
)

const (
	pageSize           = 10
	maxTitleRunes      = 100
	maxCommentRunes    = 300
	localDateTimeStamp = "2006-01-02T15:04:05"
)

var (
	errPostNotFound = errors.New("post not found")
	errNotAuthor    = errors.New("only the author may change this post")
)

type upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type storedImage struct {
	ID          int64
	ContentType string
	Data        []byte
}

type post struct {
	UUID       string
	Title      string
	Content    string
	Author     string
	AuthorName string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Images     []int64
	Comments   []api.Comment
}

type postStore struct {
	mu            sync.RWMutex
	now           func() time.Time
	posts         map[string]*post
	order         []string
	images        map[int64]storedImage
	nextImageID   int64
	nextCommentID int64
}

func newPostStore(now func() time.Time) *postStore {
	return &postStore{
		now:    now,
		posts:  make(map[string]*post),
		images: make(map[int64]storedImage),
	}
}

func stamp(t time.Time) api.Timestamp {
	return api.Timestamp(t.Format(localDateTimeStamp))
}

func imageURL(id int64) string {
	return fmt.Sprintf("/api/images/%d", id)
}

func validateDraft(title, content string, partial bool) map[string]string {
	problems := make(map[string]string)
	title = strings.TrimSpace(title)
	if title == "" && !partial {
		problems["title"] = "title is required"
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		problems["title"] = "title must be at most 100 characters"
	}
	if strings.TrimSpace(content) == "" && !partial {
		problems["content"] = "content is required"
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}

func (s *postStore) create(author member, title, content string, files []upload) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	p := &post{
		UUID:       uuid.NewString(),
		Title:      strings.TrimSpace(title),
		Content:    content,
		Author:     author.LoginID,
		AuthorName: author.Username,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	p.Images = s.storeImagesLocked(files)
	s.posts[p.UUID] = p
	s.order = append(s.order, p.UUID)
	return p.UUID
}

func (s *postStore) storeImagesLocked(files []upload) []int64 {
	ids := make([]int64, 0, len(files))
	for _, f := range files {
		s.nextImageID++
		s.images[s.nextImageID] = storedImage{ID: s.nextImageID, ContentType: f.ContentType, Data: f.Data}
		ids = append(ids, s.nextImageID)
	}
	return ids
}

// list pages newest first. page is 1-based; number in the result is the
// 0-based index, as the backend reports it.
func (s *postStore) list(page int) api.PostPage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if page < 1 {
		page = 1
	}
	total := len(s.order)
	totalPages := (total + pageSize - 1) / pageSize
	out := api.PostPage{
		Posts:         []api.PostSummary{},
		TotalElements: int64(total),
		TotalPages:    totalPages,
		Size:          pageSize,
		Number:        page - 1,
		First:         page == 1,
		Last:          page >= totalPages,
	}
	start := (page - 1) * pageSize
	for i := total - 1 - start; i >= 0 && i > total-1-start-pageSize; i-- {
		p := s.posts[s.order[i]]
		summary := api.PostSummary{
			ID:           p.UUID,
			Title:        p.Title,
			Writer:       p.AuthorName,
			CreatedAt:    stamp(p.CreatedAt),
			ModifiedAt:   stamp(p.ModifiedAt),
			CommentCount: len(p.Comments),
		}
		if len(p.Images) > 0 {
			summary.ThumbnailURL = imageURL(p.Images[0])
		}
		out.Posts = append(out.Posts, summary)
	}
	return out
}

func (s *postStore) get(id string) (api.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return api.Post{}, errPostNotFound
	}
	return p.view(), nil
}

func (p *post) view() api.Post {
	out := api.Post{
		UUID:      p.UUID,
		Title:     p.Title,
		Content:   p.Content,
		UserName:  p.AuthorName,
		CreatedAt: stamp(p.CreatedAt),
		ImageURLs: []string{},
		Comments:  append([]api.Comment{}, p.Comments...),
	}
	for _, id := range p.Images {
		out.ImageURLs = append(out.ImageURLs, imageURL(id))
		out.Images = append(out.Images, api.Image{ID: id, URL: imageURL(id)})
	}
	return out
}

func (s *postStore) update(id, loginID, title, content string, deleteImages []int64, files []upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return errPostNotFound
	}
	if p.Author != loginID {
		return errNotAuthor
	}
	if t := strings.TrimSpace(title); t != "" {
		p.Title = t
	}
	if strings.TrimSpace(content) != "" {
		p.Content = content
	}
	if len(deleteImages) > 0 {
		p.Images = slices.DeleteFunc(p.Images, func(imageID int64) bool {
			if slices.Contains(deleteImages, imageID) {
				delete(s.images, imageID)
				return true
			}
			return false
		})
	}
	p.Images = append(p.Images, s.storeImagesLocked(files)...)
	p.ModifiedAt = s.now()
	return nil
}

func (s *postStore) delete(id, loginID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return errPostNotFound
	}
	if p.Author != loginID {
		return errNotAuthor
	}
	for _, imageID := range p.Images {
		delete(s.images, imageID)
	}
	delete(s.posts, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

func (s *postStore) addComment(id, loginID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return errPostNotFound
	}
	s.nextCommentID++
	p.Comments = append(p.Comments, api.Comment{
		ID:        s.nextCommentID,
		Content:   content,
		Writer:    loginID,
		CreatedAt: stamp(s.now()),
	})
	return nil
}

func (s *postStore) byAuthor(loginID string) []api.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []api.Post{}
	for i := len(s.order) - 1; i >= 0; i-- {
		if p := s.posts[s.order[i]]; p.Author == loginID {
			out = append(out, p.view())
		}
	}
	return out
}

func (s *postStore) image(id int64) (storedImage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[id]
	return img, ok
}
