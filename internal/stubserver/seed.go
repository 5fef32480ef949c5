package stubserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/foodcom/morsel/internal/api"
)

// Seed is a fixture file loaded into a fresh server for dev runs:
//
//	members:
//	  - login_id: alice01
//	    password: password1
//	    username: Alice
//	    gender: f
//	    age: 30
//	posts:
//	  - author: alice01
//	    title: Kimchi stew
//	    content: two weeks fermented
//	    comments:
//	      - writer: alice01
//	        content: still good
type Seed struct {
	Members []SeedMember `yaml:"members"`
	Posts   []SeedPost   `yaml:"posts"`
}

// SeedMember is one member fixture. Gender accepts m/f/male/female.
type SeedMember struct {
	LoginID  string `yaml:"login_id"`
	Password string `yaml:"password"`
	Username string `yaml:"username"`
	Gender   string `yaml:"gender"`
	Age      int    `yaml:"age"`
}

// SeedPost is one post fixture, written by a seeded member.
type SeedPost struct {
	Author   string        `yaml:"author"`
	Title    string        `yaml:"title"`
	Content  string        `yaml:"content"`
	Comments []SeedComment `yaml:"comments"`
}

// SeedComment is a comment on a seeded post.
type SeedComment struct {
	Writer  string `yaml:"writer"`
	Content string `yaml:"content"`
}

// LoadSeed reads a fixture file.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return Seed{}, fmt.Errorf("seed file %s: %w", path, err)
	}
	return seed, nil
}

// ParseSeed decodes fixture YAML. Unknown keys are rejected so typos do
// not silently drop data.
func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return seed, nil
}

// ApplySeed registers the fixture members, then their posts and comments.
func (s *Server) ApplySeed(seed Seed) error {
	for _, m := range seed.Members {
		gender, ok := api.ParseGender(m.Gender)
		if !ok {
			return fmt.Errorf("seed member %s: gender %q: want m or f", m.LoginID, m.Gender)
		}
		username := m.Username
		if strings.TrimSpace(username) == "" {
			username = m.LoginID
		}
		err := s.SeedMember(api.SignupRequest{
			LoginID:  m.LoginID,
			Password: m.Password,
			Username: username,
			Gender:   gender,
			Age:      m.Age,
		})
		if err != nil {
			return err
		}
	}

	for i, p := range seed.Posts {
		author, ok := s.members.get(p.Author)
		if !ok {
			return fmt.Errorf("seed post %d: unknown author %q", i+1, p.Author)
		}
		if problems := validateDraft(p.Title, p.Content, false); problems != nil {
			return fmt.Errorf("seed post %d: invalid fields %v", i+1, problems)
		}
		id := s.posts.create(author, p.Title, p.Content, nil)
		for _, c := range p.Comments {
			if _, ok := s.members.get(c.Writer); !ok {
				return fmt.Errorf("seed post %d: unknown commenter %q", i+1, c.Writer)
			}
			if err := s.posts.addComment(id, c.Writer, strings.TrimSpace(c.Content)); err != nil {
				return err
			}
		}
	}

	s.logger.Info("seed applied", "members", len(seed.Members), "posts", len(seed.Posts))
	return nil
}
