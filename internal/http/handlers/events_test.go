package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/attendhub/internal/cache"
	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/geocoder89/attendhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error string `json:"error"`
}

func newEventsRouter(repo *fakeEventsRepo, up *fakeUploader, rm *fakeRemover, c cache.Store) *gin.Engine {
	h := handlers.NewEventsHandler(repo, up, rm, c)

	r := gin.New()
	r.GET("/events", h.ListEvents)
	r.GET("/events/:id", h.GetEventByID)
	r.POST("/events", h.CreateEvent)
	r.PUT("/events/:id", h.UpdateEvent)
	r.DELETE("/events/:id", h.DeleteEvent)
	r.POST("/events/:id/attendants", h.AddAttendant)
	r.DELETE("/events/:id/attendants", h.RemoveAttendant)
	r.GET("/events/:id/attendees", h.ListAttendees)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v body=%s", err, w.Body.String())
	}
	if body.Error == "" {
		t.Fatalf("expected error message, body=%s", w.Body.String())
	}
	return body.Error
}

func TestEvents_MalformedIDNeverReachesStorage(t *testing.T) {
	userID := newUUID()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"get", http.MethodGet, "/events/123", ""},
		{"update", http.MethodPut, "/events/123", `{"title":"x"}`},
		{"delete", http.MethodDelete, "/events/123", ""},
		{"attendees", http.MethodGet, "/events/not-an-id/attendees", ""},
		{"add attendant bad event", http.MethodPost, "/events/123/attendants", `{"userId":"` + userID + `"}`},
		{"add attendant bad user", http.MethodPost, "/events/" + newUUID() + "/attendants", `{"userId":"abc"}`},
		{"remove attendant bad user", http.MethodDelete, "/events/" + newUUID() + "/attendants", `{"userId":"abc"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeEventsRepo{}
			r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, nil)

			w := doJSON(r, tt.method, tt.path, tt.body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
			}
			decodeError(t, w)
			if repo.calls != 0 {
				t.Fatalf("storage reached %d times for malformed id", repo.calls)
			}
		})
	}
}

func TestCreateEvent_WithoutCreatedBy(t *testing.T) {
	var got event.NewEvent
	repo := &fakeEventsRepo{
		createFn: func(_ context.Context, in event.NewEvent) (event.Event, error) {
			got = in
			return event.NewFromCreate(in), nil
		},
	}
	r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, nil)

	w := doJSON(r, http.MethodPost, "/events", `{"title":"Launch","description":"d","date":"2024-01-01"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["createdBy"]; ok {
		t.Fatalf("createdBy should be absent, body=%s", w.Body.String())
	}
	if body["title"] != "Launch" {
		t.Fatalf("got title %v", body["title"])
	}

	if got.CreatedBy != nil {
		t.Fatalf("createdBy should not be set")
	}
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !got.Date.Equal(want) {
		t.Fatalf("got date %v, want %v", got.Date, want)
	}
}

func TestCreateEvent_ValidationNamesFields(t *testing.T) {
	repo := &fakeEventsRepo{}
	r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, nil)

	w := doJSON(r, http.MethodPost, "/events", `{"title":"go"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}

	msg := decodeError(t, w)
	for _, field := range []string{"description", "date"} {
		if !bytes.Contains([]byte(msg), []byte(field)) {
			t.Fatalf("error %q does not mention %s", msg, field)
		}
	}
	if repo.calls != 0 {
		t.Fatalf("storage should not be reached")
	}
}

func TestCreateEvent_BadDate(t *testing.T) {
	repo := &fakeEventsRepo{}
	r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, nil)

	w := doJSON(r, http.MethodPost, "/events", `{"title":"t","description":"d","date":"someday"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCreateEvent_StripsHTML(t *testing.T) {
	var got event.NewEvent
	repo := &fakeEventsRepo{
		createFn: func(_ context.Context, in event.NewEvent) (event.Event, error) {
			got = in
			return event.NewFromCreate(in), nil
		},
	}
	r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, nil)

	w := doJSON(r, http.MethodPost, "/events", `{"title":"<b>Launch</b>","description":"<script>x()</script>d","date":"2024-01-01"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if got.Title != "Launch" || got.Description != "d" {
		t.Fatalf("html not stripped: %+v", got)
	}
}

func multipartEventBody(t *testing.T, fields map[string]string, fileField, fileName string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		fw.Write([]byte("\x89PNG fake"))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestCreateEvent_MultipartWithImage(t *testing.T) {
	var got event.NewEvent
	repo := &fakeEventsRepo{
		createFn: func(_ context.Context, in event.NewEvent) (event.Event, error) {
			got = in
			return event.NewFromCreate(in), nil
		},
	}
	up := &fakeUploader{url: "https://media.example/events/a.png"}
	r := newEventsRouter(repo, up, &fakeRemover{}, nil)

	body, ct := multipartEventBody(t, map[string]string{
		"title": "Launch", "description": "d", "date": "2024-01-01T18:30",
	}, "imageUrl", "a.png")

	req := httptest.NewRequest(http.MethodPost, "/events", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if len(up.files) != 1 || up.files[0] != "events/a.png" {
		t.Fatalf("unexpected uploads: %v", up.files)
	}
	if got.ImageURL == nil || *got.ImageURL != up.url {
		t.Fatalf("image url not stored: %v", got.ImageURL)
	}
}

func TestCreateEvent_InsertFailureRemovesUpload(t *testing.T) {
	repo := &fakeEventsRepo{
		createFn: func(context.Context, event.NewEvent) (event.Event, error) {
			return event.Event{}, errors.New("db down")
		},
	}
	up := &fakeUploader{url: "https://media.example/events/a.png"}
	rm := &fakeRemover{}
	r := newEventsRouter(repo, up, rm, nil)

	body, ct := multipartEventBody(t, map[string]string{
		"title": "Launch", "description": "d", "date": "2024-01-01",
	}, "imageUrl", "a.png")

	req := httptest.NewRequest(http.MethodPost, "/events", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(rm.removed) != 1 || rm.removed[0] != up.url {
		t.Fatalf("expected orphan upload removed, got %v", rm.removed)
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	repo := &fakeEventsRepo{
		getFn: func(context.Context, string) (event.View, error) {
			return event.View{}, event.ErrNotFound
		},
	}
	r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, nil)

	w := doJSON(r, http.MethodGet, "/events/"+newUUID(), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestListEvents_CachedWithETag(t *testing.T) {
	repo := &fakeEventsRepo{
		listFn: func(context.Context) ([]event.View, error) {
			return []event.View{{ID: "e1", Title: "Launch", Attendants: []event.UserRef{}}}, nil
		},
	}
	c := cache.NewMemory(time.Minute)
	r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, c)

	first := doJSON(r, http.MethodGet, "/events", "")
	if first.Code != http.StatusOK {
		t.Fatalf("got status %d", first.Code)
	}
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header")
	}

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("If-None-Match", etag)
	second := httptest.NewRecorder()
	r.ServeHTTP(second, req)

	if second.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want %d", second.Code, http.StatusNotModified)
	}
	if repo.calls != 1 {
		t.Fatalf("second list should be served from cache, repo calls=%d", repo.calls)
	}

	// a write drops the cached list
	doJSON(r, http.MethodDelete, "/events/"+newUUID(), "")
	doJSON(r, http.MethodGet, "/events", "")
	if repo.calls != 3 {
		t.Fatalf("list should be reloaded after a write, repo calls=%d", repo.calls)
	}
}

func TestListEvents_LoadRacingDeleteIsNotCached(t *testing.T) {
	deleted := newUUID()
	entered := make(chan struct{})
	release := make(chan struct{})

	blocking := true
	repo := &fakeEventsRepo{}
	repo.listFn = func(context.Context) ([]event.View, error) {
		if blocking {
			blocking = false
			close(entered)
			<-release
			return []event.View{{ID: deleted, Title: "Gone", Attendants: []event.UserRef{}}}, nil
		}
		return []event.View{}, nil
	}
	c := cache.NewMemory(time.Minute)
	r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, c)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- doJSON(r, http.MethodGet, "/events", "")
	}()

	<-entered
	if w := doJSON(r, http.MethodDelete, "/events/"+deleted, ""); w.Code != http.StatusOK {
		t.Fatalf("delete got status %d", w.Code)
	}
	close(release)

	if w := <-done; w.Code != http.StatusOK {
		t.Fatalf("racing list got status %d", w.Code)
	}

	w := doJSON(r, http.MethodGet, "/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}

	var got []event.View
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("deleted event served from cache: %+v", got)
	}
}

func TestListEvents_UnexpectedErrorIs400(t *testing.T) {
	repo := &fakeEventsRepo{
		listFn: func(context.Context) ([]event.View, error) {
			return nil, errors.New("boom")
		},
	}
	r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, nil)

	w := doJSON(r, http.MethodGet, "/events", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
	decodeError(t, w)
}

func TestUpdateEvent_ReplacesImageAfterWrite(t *testing.T) {
	old := "https://media.example/events/old.png"
	repo := &fakeEventsRepo{
		getFn: func(_ context.Context, id string) (event.View, error) {
			return event.View{ID: id, ImageURL: &old}, nil
		},
	}
	up := &fakeUploader{url: "https://media.example/events/new.png"}
	rm := &fakeRemover{}
	r := newEventsRouter(repo, up, rm, nil)

	body, ct := multipartEventBody(t, map[string]string{"title": "New"}, "imageUrl", "new.png")
	req := httptest.NewRequest(http.MethodPut, "/events/"+newUUID(), body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var got event.Event
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "New" || got.ImageURL == nil || *got.ImageURL != up.url {
		t.Fatalf("unexpected event: %+v", got)
	}
	if len(rm.removed) != 1 || rm.removed[0] != old {
		t.Fatalf("old image should be removed once, got %v", rm.removed)
	}
}

func TestUpdateEvent_IgnoresFieldsOutsideAllowList(t *testing.T) {
	var patch event.Patch
	repo := &fakeEventsRepo{
		updateFn: func(_ context.Context, id string, p event.Patch) (event.Event, error) {
			patch = p
			return event.Event{ID: id}, nil
		},
	}
	r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, nil)

	w := doJSON(r, http.MethodPut, "/events/"+newUUID(), `{"attendants":["x"],"createdBy":"y","description":"new"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if patch.Description == nil || *patch.Description != "new" {
		t.Fatalf("description not patched: %+v", patch)
	}
	if patch.Title != nil || patch.Date != nil || patch.ImageURL != nil {
		t.Fatalf("unexpected patch fields: %+v", patch)
	}
}

func TestDeleteEvent_RemovesImageOnce(t *testing.T) {
	img := "https://media.example/events/a.png"
	repo := &fakeEventsRepo{
		deleteFn: func(_ context.Context, id string) (event.Event, error) {
			return event.Event{ID: id, ImageURL: &img}, nil
		},
	}
	rm := &fakeRemover{}
	r := newEventsRouter(repo, &fakeUploader{}, rm, nil)

	w := doJSON(r, http.MethodDelete, "/events/"+newUUID(), "")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if len(rm.removed) != 1 || rm.removed[0] != img {
		t.Fatalf("expected exactly one delete of %s, got %v", img, rm.removed)
	}
}

func TestDeleteEvent_NotFound(t *testing.T) {
	repo := &fakeEventsRepo{
		deleteFn: func(context.Context, string) (event.Event, error) {
			return event.Event{}, event.ErrNotFound
		},
	}
	rm := &fakeRemover{}
	r := newEventsRouter(repo, &fakeUploader{}, rm, nil)

	w := doJSON(r, http.MethodDelete, "/events/"+newUUID(), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNotFound)
	}
	if len(rm.removed) != 0 {
		t.Fatalf("nothing should be removed")
	}
}

func TestAttendants_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		method string
		err    error
		want   int
	}{
		{"add ok", http.MethodPost, nil, http.StatusOK},
		{"add event missing", http.MethodPost, event.ErrNotFound, http.StatusNotFound},
		{"add user missing", http.MethodPost, user.ErrNotFound, http.StatusNotFound},
		{"add twice", http.MethodPost, event.ErrAlreadyAttending, http.StatusBadRequest},
		{"add unexpected", http.MethodPost, errors.New("boom"), http.StatusInternalServerError},
		{"remove ok", http.MethodDelete, nil, http.StatusOK},
		{"remove event missing", http.MethodDelete, event.ErrNotFound, http.StatusNotFound},
		{"remove not listed", http.MethodDelete, event.ErrNotAttending, http.StatusBadRequest},
		{"remove user missing", http.MethodDelete, user.ErrNotFound, http.StatusNotFound},
		{"remove unexpected", http.MethodDelete, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeEventsRepo{
				addAttendantFn: func(context.Context, string, string) error { return tt.err },
				removeAttendantFn: func(_ context.Context, eventID, _ string) (event.View, error) {
					return event.View{ID: eventID}, tt.err
				},
			}
			r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, nil)

			w := doJSON(r, tt.method, "/events/"+newUUID()+"/attendants", `{"userId":"`+newUUID()+`"}`)

			if w.Code != tt.want {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAttendants_MissingUserID(t *testing.T) {
	repo := &fakeEventsRepo{}
	r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, nil)

	w := doJSON(r, http.MethodPost, "/events/"+newUUID()+"/attendants", `{}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
	if msg := decodeError(t, w); !bytes.Contains([]byte(msg), []byte("userId")) {
		t.Fatalf("error %q should name userId", msg)
	}
}

func TestListAttendees(t *testing.T) {
	repo := &fakeEventsRepo{
		listAttendeesFn: func(context.Context, string) ([]event.UserRef, error) {
			return []event.UserRef{{ID: "u1", UserName: "ada"}}, nil
		},
	}
	r := newEventsRouter(repo, &fakeUploader{}, &fakeRemover{}, nil)

	w := doJSON(r, http.MethodGet, "/events/"+newUUID()+"/attendees", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}

	var got []event.UserRef
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].UserName != "ada" {
		t.Fatalf("unexpected attendees: %+v", got)
	}

	repo.listAttendeesFn = func(context.Context, string) ([]event.UserRef, error) {
		return nil, errors.New("boom")
	}
	if w := doJSON(r, http.MethodGet, "/events/"+newUUID()+"/attendees", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
