package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/mailer"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/model"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/query"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/service"
)

type fakeService struct {
	user      model.User
	err       error
	total     int
	gotFilter query.Filter
	gotPage   query.Page
	gotPatch  model.UserUpdate
	deleted   []int64
}

func (f *fakeService) Get(_ context.Context, id int64) (model.User, error) {
	if f.err != nil {
		return model.User{}, f.err
	}
	return f.user, nil
}

func (f *fakeService) Create(_ context.Context, name, email string, age int) (model.User, error) {
	if f.err != nil {
		return model.User{}, f.err
	}
	return model.User{ID: 1, Name: name, Email: email, Age: age}, nil
}

func (f *fakeService) Update(_ context.Context, id int64, patch model.UserUpdate) (model.User, error) {
	f.gotPatch = patch
	if f.err != nil {
		return model.User{}, f.err
	}
	return f.user, nil
}

func (f *fakeService) Delete(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeService) List(_ context.Context, fl query.Filter, p query.Page) ([]model.User, int, error) {
	f.gotFilter = fl
	f.gotPage = p
	if f.err != nil {
		return nil, 0, f.err
	}
	return []model.User{f.user}, f.total, nil
}

func (f *fakeService) CheckEmail(_ context.Context, email string) error {
	return f.err
}

type fakeMailer struct {
	checkErr error
	sendRes  mailer.SendResult
	sendErr  error
}

func (f *fakeMailer) CheckExists(_ context.Context, email string) error {
	return f.checkErr
}

func (f *fakeMailer) Send(_ context.Context, email, message string) (mailer.SendResult, error) {
	return f.sendRes, f.sendErr
}

func newTestHandler(svc *fakeService, m *fakeMailer) http.Handler {
	mux := http.NewServeMux()
	h := New(svc, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Register(mux)
	return mux
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code, body.Message
}

func TestGetUserOK(t *testing.T) {
	svc := &fakeService{user: model.User{ID: 7, Name: "Ann", Email: "ann@example.com", Age: 30}}
	rec := doRequest(t, newTestHandler(svc, &fakeMailer{}), http.MethodGet, "/api/users/7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var u model.User
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.ID != 7 || u.Email != "ann@example.com" {
		t.Fatalf("unexpected body: %+v", u)
	}
}

func TestGetUserNotFound(t *testing.T) {
	svc := &fakeService{err: &service.NotFoundError{ID: 42}}
	rec := doRequest(t, newTestHandler(svc, &fakeMailer{}), http.MethodGet, "/api/users/42", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if code, _ := decodeError(t, rec); code != "NOT_FOUND" {
		t.Fatalf("code = %q, want NOT_FOUND", code)
	}
}

func TestGetUserBadID(t *testing.T) {
	rec := doRequest(t, newTestHandler(&fakeService{}, &fakeMailer{}), http.MethodGet, "/api/users/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateUserCreated(t *testing.T) {
	svc := &fakeService{}
	rec := doRequest(t, newTestHandler(svc, &fakeMailer{}), http.MethodPost, "/api/users",
		`{"name":"Bob","email":"bob@example.com","age":25}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
}

func TestCreateUserValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"a@b.com","age":25}`},
		{"long name", `{"name":"abcdefghijklmnop","email":"a@b.com","age":25}`},
		{"missing email", `{"name":"Bob","age":25}`},
		{"bad email", `{"name":"Bob","email":"not-an-email","age":25}`},
		{"long email", `{"name":"Bob","email":"averyveryverylongaddress@example.com","age":25}`},
		{"missing age", `{"name":"Bob","email":"a@b.com"}`},
		{"zero age", `{"name":"Bob","email":"a@b.com","age":0}`},
		{"huge age", `{"name":"Bob","email":"a@b.com","age":151}`},
		{"not json", `{`},
	}
	h := newTestHandler(&fakeService{}, &fakeMailer{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/users", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if code, _ := decodeError(t, rec); code != "VALIDATION_ERROR" {
				t.Fatalf("code = %q, want VALIDATION_ERROR", code)
			}
		})
	}
}

func TestCreateUserConflict(t *testing.T) {
	svc := &fakeService{err: service.ErrConflict}
	rec := doRequest(t, newTestHandler(svc, &fakeMailer{}), http.MethodPost, "/api/users",
		`{"name":"Bob","email":"bob@example.com","age":25}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code, _ := decodeError(t, rec); code != "CONFLICT" {
		t.Fatalf("code = %q, want CONFLICT", code)
	}
}

func TestUpdateUserPartialBody(t *testing.T) {
	svc := &fakeService{user: model.User{ID: 3, Name: "Cara", Email: "cara@example.com", Age: 41}}
	rec := doRequest(t, newTestHandler(svc, &fakeMailer{}), http.MethodPut, "/api/users/3",
		`{"age":41}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.gotPatch.Name != nil || svc.gotPatch.Email != nil {
		t.Fatalf("fields not supplied must stay nil: %+v", svc.gotPatch)
	}
	if svc.gotPatch.Age == nil || *svc.gotPatch.Age != 41 {
		t.Fatalf("age not forwarded: %+v", svc.gotPatch)
	}
}

func TestUpdateUserValidatesSuppliedFields(t *testing.T) {
	rec := doRequest(t, newTestHandler(&fakeService{}, &fakeMailer{}), http.MethodPut, "/api/users/3",
		`{"email":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteUserNoContent(t *testing.T) {
	svc := &fakeService{}
	rec := doRequest(t, newTestHandler(svc, &fakeMailer{}), http.MethodDelete, "/api/users/9", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != 9 {
		t.Fatalf("deleted = %v, want [9]", svc.deleted)
	}
}

func TestDeleteUserNotFound(t *testing.T) {
	svc := &fakeService{err: &service.NotFoundError{ID: 9}}
	rec := doRequest(t, newTestHandler(svc, &fakeMailer{}), http.MethodDelete, "/api/users/9", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListUsersParamsForwarded(t *testing.T) {
	svc := &fakeService{user: model.User{ID: 1}, total: 37}
	rec := doRequest(t, newTestHandler(svc, &fakeMailer{}), http.MethodGet,
		"/api/users?name=an&ageGt=18&createdAtGt=2025-01-01T00:00:00&page=2&size=5&sortBy=age&sortDirection=asc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.gotFilter.Name == nil || *svc.gotFilter.Name != "an" {
		t.Fatalf("name filter not forwarded: %+v", svc.gotFilter)
	}
	if svc.gotFilter.AgeGt == nil || *svc.gotFilter.AgeGt != 18 {
		t.Fatalf("ageGt filter not forwarded: %+v", svc.gotFilter)
	}
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if svc.gotFilter.CreatedAfter == nil || !svc.gotFilter.CreatedAfter.Equal(want) {
		t.Fatalf("createdAtGt not forwarded: %+v", svc.gotFilter.CreatedAfter)
	}
	if svc.gotPage.Number != 2 || svc.gotPage.Size != 5 || svc.gotPage.SortBy != "age" || svc.gotPage.SortDir != "asc" {
		t.Fatalf("page not forwarded: %+v", svc.gotPage)
	}
	if got := rec.Header().Get("X-Total-Count"); got != "37" {
		t.Fatalf("X-Total-Count = %q, want 37", got)
	}
}

func TestListUsersRejectsUnknownSort(t *testing.T) {
	rec := doRequest(t, newTestHandler(&fakeService{}, &fakeMailer{}), http.MethodGet,
		"/api/users?sortBy=email;drop", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListUsersRejectsOversizePage(t *testing.T) {
	rec := doRequest(t, newTestHandler(&fakeService{}, &fakeMailer{}), http.MethodGet,
		"/api/users?size=101", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCheckEmailFound(t *testing.T) {
	rec := doRequest(t, newTestHandler(&fakeService{}, &fakeMailer{}), http.MethodPost,
		"/api/users/checkemail", `{"email":"ann@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCheckEmailNotFound(t *testing.T) {
	svc := &fakeService{err: &service.NotFoundError{Email: "gone@example.com"}}
	rec := doRequest(t, newTestHandler(svc, &fakeMailer{}), http.MethodPost,
		"/api/users/checkemail", `{"email":"gone@example.com"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSendEmailSent(t *testing.T) {
	m := &fakeMailer{sendRes: mailer.SendResult{Status: "SENT", Message: "delivered"}}
	rec := doRequest(t, newTestHandler(&fakeService{}, m), http.MethodPost, "/api/email",
		`{"email":"ann@example.com","message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSendEmailQueuedFallback(t *testing.T) {
	m := &fakeMailer{sendRes: mailer.SendResult{Status: "QUEUED", Message: "email queued due to service temporary unavailability"}}
	rec := doRequest(t, newTestHandler(&fakeService{}, m), http.MethodPost, "/api/email",
		`{"email":"ann@example.com","message":"hi"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var res mailer.SendResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != "QUEUED" {
		t.Fatalf("status = %q, want QUEUED", res.Status)
	}
}

func TestSendEmailUnknownRecipient(t *testing.T) {
	m := &fakeMailer{checkErr: mailer.ErrNotFound}
	rec := doRequest(t, newTestHandler(&fakeService{}, m), http.MethodPost, "/api/email",
		`{"email":"gone@example.com","message":"hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSendEmailCollaboratorDown(t *testing.T) {
	m := &fakeMailer{checkErr: mailer.ErrUnavailable}
	rec := doRequest(t, newTestHandler(&fakeService{}, m), http.MethodPost, "/api/email",
		`{"email":"ann@example.com","message":"hi"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if code, _ := decodeError(t, rec); code != "EXTERNAL_SERVICE_ERROR" {
		t.Fatalf("code = %q, want EXTERNAL_SERVICE_ERROR", code)
	}
}
