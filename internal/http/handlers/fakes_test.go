package handlers_test

import (
	"context"
	"mime/multipart"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Make sure Gin does not spam the console during the test
func init() {
	gin.SetMode(gin.TestMode)
}

func newUUID() string {
	return uuid.NewString()
}


type fakeEventsRepo struct {
	listFn            func(ctx context.Context) ([]event.View, error)
	getFn             func(ctx context.Context, id string) (event.View, error)
	createFn          func(ctx context.Context, in event.NewEvent) (event.Event, error)
	updateFn          func(ctx context.Context, id string, p event.Patch) (event.Event, error)
	deleteFn          func(ctx context.Context, id string) (event.Event, error)
	addAttendantFn    func(ctx context.Context, eventID, userID string) error
	removeAttendantFn func(ctx context.Context, eventID, userID string) (event.View, error)
	listAttendeesFn   func(ctx context.Context, eventID string) ([]event.UserRef, error)

	calls int
}

func (f *fakeEventsRepo) List(ctx context.Context) ([]event.View, error) {
	f.calls++
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []event.View{}, nil
}

func (f *fakeEventsRepo) GetByID(ctx context.Context, id string) (event.View, error) {
	f.calls++
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return event.View{ID: id}, nil
}

func (f *fakeEventsRepo) Create(ctx context.Context, in event.NewEvent) (event.Event, error) {
	f.calls++
	if f.createFn != nil {
		return f.createFn(ctx, in)
	}
	e := event.NewFromCreate(in)
	return e, nil
}

func (f *fakeEventsRepo) Update(ctx context.Context, id string, p event.Patch) (event.Event, error) {
	f.calls++
	if f.updateFn != nil {
		return f.updateFn(ctx, id, p)
	}
	e := event.Event{ID: id, Attendants: []string{}}
	p.Apply(&e)
	return e, nil
}

func (f *fakeEventsRepo) Delete(ctx context.Context, id string) (event.Event, error) {
	f.calls++
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return event.Event{ID: id}, nil
}

func (f *fakeEventsRepo) AddAttendant(ctx context.Context, eventID, userID string) error {
	f.calls++
	if f.addAttendantFn != nil {
		return f.addAttendantFn(ctx, eventID, userID)
	}
	return nil
}

func (f *fakeEventsRepo) RemoveAttendant(ctx context.Context, eventID, userID string) (event.View, error) {
	f.calls++
	if f.removeAttendantFn != nil {
		return f.removeAttendantFn(ctx, eventID, userID)
	}
	return event.View{ID: eventID}, nil
}

func (f *fakeEventsRepo) ListAttendees(ctx context.Context, eventID string) ([]event.UserRef, error) {
	f.calls++
	if f.listAttendeesFn != nil {
		return f.listAttendeesFn(ctx, eventID)
	}
	return []event.UserRef{}, nil
}

type fakeUsersRepo struct {
	listFn          func(ctx context.Context) ([]user.Summary, error)
	getDetailFn     func(ctx context.Context, id string) (user.Detail, error)
	getByIDFn       func(ctx context.Context, id string) (user.User, error)
	getByUserNameFn func(ctx context.Context, userName string) (user.User, error)
	createFn        func(ctx context.Context, in user.NewUser) (user.User, error)
	updateFn        func(ctx context.Context, id string, p user.Patch) (user.User, error)
	deleteFn        func(ctx context.Context, id string) (user.User, error)

	calls int
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]user.Summary, error) {
	f.calls++
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []user.Summary{}, nil
}

func (f *fakeUsersRepo) GetDetail(ctx context.Context, id string) (user.Detail, error) {
	f.calls++
	if f.getDetailFn != nil {
		return f.getDetailFn(ctx, id)
	}
	return user.Detail{ID: id}, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	f.calls++
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return user.User{ID: id, Role: user.RoleUser}, nil
}

func (f *fakeUsersRepo) GetByUserName(ctx context.Context, userName string) (user.User, error) {
	f.calls++
	if f.getByUserNameFn != nil {
		return f.getByUserNameFn(ctx, userName)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) Create(ctx context.Context, in user.NewUser) (user.User, error) {
	f.calls++
	if f.createFn != nil {
		return f.createFn(ctx, in)
	}
	return user.NewFromCreate(in), nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, id string, p user.Patch) (user.User, error) {
	f.calls++
	if f.updateFn != nil {
		return f.updateFn(ctx, id, p)
	}
	u := user.User{ID: id}
	p.Apply(&u)
	return u, nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id string) (user.User, error) {
	f.calls++
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return user.User{ID: id}, nil
}

type fakeUploader struct {
	url   string
	err   error
	files []string
}

func (f *fakeUploader) Upload(_ context.Context, fh *multipart.FileHeader, folder string) (string, error) {
	f.files = append(f.files, folder+"/"+fh.Filename)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeRemover struct {
	removed []string
}

func (f *fakeRemover) Remove(_ context.Context, url, _ string) {
	f.removed = append(f.removed, url)
}

type fakeTokens struct{}

func (fakeTokens) GenerateToken(userID string) (string, error) {
	return "token-for-" + userID, nil
}
