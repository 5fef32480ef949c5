package stubserver

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/foodcom/morsel/internal/api"
)

var (
	errDuplicateMember = errors.New("login id already registered")
	errBadCredentials  = errors.New("login id or password does not match")
	errUnknownMember   = errors.New("member not found")
)

type member struct {
	ID       int64
	LoginID  string
	Username string
	Gender   api.Gender
	Age      int
	hash     []byte
}

type memberStore struct {
	mu      sync.RWMutex
	cost    int
	nextID  int64
	byLogin map[string]*member
}

func newMemberStore(cost int) *memberStore {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &memberStore{cost: cost, byLogin: make(map[string]*member)}
}

// validateSignup applies the backend's field rules and returns per-field
// messages, or nil when the request is acceptable.
func validateSignup(req api.SignupRequest) map[string]string {
	problems := make(map[string]string)
	if n := utf8.RuneCountInString(strings.TrimSpace(req.LoginID)); n < 5 || n > 20 {
		problems["loginId"] = "login id must be 5 to 20 characters"
	}
	if n := utf8.RuneCountInString(req.Password); n < 8 || n > 20 {
		problems["password"] = "password must be 8 to 20 characters"
	}
	if strings.TrimSpace(req.Username) == "" {
		problems["username"] = "username is required"
	}
	if req.Gender != api.GenderMale && req.Gender != api.GenderFemale {
		problems["gender"] = "gender must be MALE or FEMALE"
	}
	if req.Age <= 0 {
		problems["age"] = "age is required"
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}

func (s *memberStore) create(req api.SignupRequest) (member, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return member{}, fmt.Errorf("hash password: %w", err)
	}
	loginID := strings.TrimSpace(req.LoginID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byLogin[loginID]; exists {
		return member{}, errDuplicateMember
	}
	s.nextID++
	m := &member{
		ID:       s.nextID,
		LoginID:  loginID,
		Username: strings.TrimSpace(req.Username),
		Gender:   req.Gender,
		Age:      req.Age,
		hash:     hash,
	}
	s.byLogin[loginID] = m
	return *m, nil
}

func (s *memberStore) authenticate(loginID, password string) (member, error) {
	s.mu.RLock()
	m, ok := s.byLogin[strings.TrimSpace(loginID)]
	s.mu.RUnlock()
	if !ok {
		return member{}, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(m.hash, []byte(password)); err != nil {
		return member{}, errBadCredentials
	}
	return *m, nil
}

func (s *memberStore) get(loginID string) (member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byLogin[loginID]
	if !ok {
		return member{}, false
	}
	return *m, true
}

func (s *memberStore) update(loginID string, upd api.ProfileUpdate) (member, error) {
	var hash []byte
	if upd.NewPassword != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(upd.NewPassword), s.cost)
		if err != nil {
			return member{}, fmt.Errorf("hash password: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byLogin[loginID]
	if !ok {
		return member{}, errUnknownMember
	}
	if name := strings.TrimSpace(upd.NewName); name != "" {
		m.Username = name
	}
	if hash != nil {
		m.hash = hash
	}
	if upd.Gender != "" {
		m.Gender = upd.Gender
	}
	if upd.Age != nil {
		m.Age = *upd.Age
	}
	return *m, nil
}
