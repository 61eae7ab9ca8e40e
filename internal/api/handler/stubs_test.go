package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withSession(c echo.Context, s *domain.Session) {
	// Same key the Auth middleware uses.
	c.Set("session", s)
}

type stubAuthService struct {
	loginFn    func(ctx context.Context, in ports.LoginInput) (*ports.AuthResult, error)
	registerFn func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error)
	logoutFn   func(ctx context.Context, s *domain.Session) error
	profileFn  func(ctx context.Context, userID string, u domain.ProfileUpdate) (*domain.User, error)
	meFn       func(ctx context.Context, userID string) (*ports.MemberOverview, error)
}

func (s *stubAuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.AuthResult, error) {
	return s.loginFn(ctx, in)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Logout(ctx context.Context, session *domain.Session) error {
	return s.logoutFn(ctx, session)
}

func (s *stubAuthService) Authenticate(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrUnauthenticated
}

func (s *stubAuthService) UpdateProfile(ctx context.Context, userID string, u domain.ProfileUpdate) (*domain.User, error) {
	return s.profileFn(ctx, userID, u)
}

func (s *stubAuthService) Me(ctx context.Context, userID string) (*ports.MemberOverview, error) {
	return s.meFn(ctx, userID)
}

type stubHWIDService struct {
	validateFn func(ctx context.Context, key, hwid string) (domain.ValidationResult, error)
	resetFn    func(ctx context.Context, userID, licenseID, ip string) (domain.ResetResult, error)
	infoFn     func(ctx context.Context, userID string) ([]ports.LicenseView, error)
}

func (s *stubHWIDService) ValidateAndBind(ctx context.Context, key, hwid string) (domain.ValidationResult, error) {
	return s.validateFn(ctx, key, hwid)
}

func (s *stubHWIDService) UserResetHWID(ctx context.Context, userID, licenseID, ip string) (domain.ResetResult, error) {
	return s.resetFn(ctx, userID, licenseID, ip)
}

func (s *stubHWIDService) ForceReset(context.Context, string) (*domain.License, error) {
	return nil, nil
}

func (s *stubHWIDService) LicenseInfo(ctx context.Context, userID string) ([]ports.LicenseView, error) {
	return s.infoFn(ctx, userID)
}

type stubDedup struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
	err      error
}

func (d *stubDedup) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *stubDedup) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	d.released = append(d.released, id)
	return nil
}

// stubDispatcher records every dispatched event and returns err for it.
type stubDispatcher struct {
	events []domain.OrderEvent
	err    error
}

func (d *stubDispatcher) Dispatch(_ context.Context, e domain.OrderEvent) error {
	d.events = append(d.events, e)
	return d.err
}

type stubAdminService struct {
	lastToken  string
	lastAction ports.AdminAction
	lastRecord string
	lastInput  ports.LicenseInput
	err        error
}

func (s *stubAdminService) IssueActionToken(_ context.Context, _ *domain.Session, action ports.AdminAction, recordID string) (*ports.ActionToken, error) {
	s.lastAction, s.lastRecord = action, recordID
	if s.err != nil {
		return nil, s.err
	}
	return &ports.ActionToken{Token: "tok-1"}, nil
}

func (s *stubAdminService) AddLicense(_ context.Context, _ *domain.Session, token string, in ports.LicenseInput) (*domain.License, error) {
	s.lastToken, s.lastInput = token, in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.License{ID: "l1", Key: in.Key, Status: domain.LicenseActive}, nil
}

func (s *stubAdminService) EditLicense(_ context.Context, _ *domain.Session, token, id string, in ports.LicenseInput) (*domain.License, error) {
	s.lastToken, s.lastRecord, s.lastInput = token, id, in
	return &domain.License{ID: id}, s.err
}

func (s *stubAdminService) DeleteLicense(_ context.Context, _ *domain.Session, token, id string) error {
	s.lastToken, s.lastRecord = token, id
	return s.err
}

func (s *stubAdminService) ForceReset(_ context.Context, _ *domain.Session, token, id string) (*domain.License, error) {
	s.lastToken, s.lastRecord = token, id
	return &domain.License{ID: id}, s.err
}

func (s *stubAdminService) RevokeLicense(_ context.Context, _ *domain.Session, token, id string) (*domain.License, error) {
	s.lastToken, s.lastRecord = token, id
	return &domain.License{ID: id, Status: domain.LicenseRevoked}, s.err
}

func (s *stubAdminService) ToggleBan(_ context.Context, _ *domain.Session, token, id string) (*domain.User, error) {
	s.lastToken, s.lastRecord = token, id
	return &domain.User{ID: id, Banned: true}, s.err
}

type stubForumService struct {
	lastLimit  int
	lastViewer *domain.Session
	detail     *ports.TopicDetail
	err        error
}

func (s *stubForumService) ListTopics(_ context.Context, limit int) ([]domain.Topic, error) {
	s.lastLimit = limit
	return []domain.Topic{{ID: "t1", Title: "Hello"}}, s.err
}

func (s *stubForumService) GetTopic(_ context.Context, _ string, viewer *domain.Session) (*ports.TopicDetail, error) {
	s.lastViewer = viewer
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

func (s *stubForumService) CreateTopic(_ context.Context, author *domain.Session, title, content string, premium bool) (*ports.TopicDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ports.TopicDetail{Topic: domain.Topic{ID: "t9", AuthorID: author.UserID, Title: title, Premium: premium}}, nil
}

func (s *stubForumService) Reply(_ context.Context, author *domain.Session, topicID, content string) (*domain.Post, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Post{ID: "p1", TopicID: topicID, AuthorID: author.UserID, Content: content}, nil
}

func (s *stubForumService) Thank(context.Context, *domain.Session, string) error {
	return s.err
}
