package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/geocoder89/attendhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

func bindRouter(newReq func() any) *gin.Engine {
	r := gin.New()
	r.POST("/bind", func(ctx *gin.Context) {
		req := newReq()
		if !handlers.Bind(ctx, req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})
	return r
}

func postBind(r http.Handler, body string) (int, string) {
	req := httptest.NewRequest(http.MethodPost, "/bind", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w.Code, resp.Error
}

func TestBind_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	r := bindRouter(func() any { return &event.CreateEventRequest{} })

	code, msg := postBind(r, `{"title":"go","createdBy":"nope"}`)

	if code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", code, http.StatusBadRequest)
	}

	for _, want := range []string{"description is required", "date is required", "createdBy must be a valid id"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q should contain %q", msg, want)
		}
	}
	if strings.Contains(msg, "Description") {
		t.Fatalf("message %q leaks Go field names", msg)
	}
}

func TestBind_TypeMismatchUsesJSONFieldNames(t *testing.T) {
	r := bindRouter(func() any { return &user.LoginRequest{} })

	code, msg := postBind(r, `{"userName":5,"password":"x"}`)

	if code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", code, http.StatusBadRequest)
	}
	if !strings.Contains(msg, "userName must be of type string") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestBind_InvalidEmail(t *testing.T) {
	r := bindRouter(func() any { return &user.RegisterRequest{} })

	code, msg := postBind(r, `{"userName":"ada","password":"pw","email":"not-mail"}`)

	if code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", code, http.StatusBadRequest)
	}
	if !strings.Contains(msg, "email must be a valid email address") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestBind_MalformedJSON(t *testing.T) {
	r := bindRouter(func() any { return &user.LoginRequest{} })

	code, msg := postBind(r, `{"userName":`)

	if code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", code, http.StatusBadRequest)
	}
	if msg != "invalid request body" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestBind_Valid(t *testing.T) {
	r := bindRouter(func() any { return &user.LoginRequest{} })

	if code, _ := postBind(r, `{"userName":"ada","password":"pw"}`); code != http.StatusCreated {
		t.Fatalf("got status %d, want %d", code, http.StatusCreated)
	}
}
