package enrolments

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/coursebridge/backend/internal/models"
)

// fakeStore is an in-memory TxStore. InTx snapshots the state and restores it
// when the callback fails, mirroring transaction rollback.
type fakeStore struct {
	containers      map[int64]*models.EnrolmentContainer
	userEnrolments  map[int64]*models.UserEnrolment
	nextContainerID int64
	nextEnrolmentID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		containers:     make(map[int64]*models.EnrolmentContainer),
		userEnrolments: make(map[int64]*models.UserEnrolment),
	}
}

func (f *fakeStore) snapshot() (map[int64]*models.EnrolmentContainer, map[int64]*models.UserEnrolment) {
	containers := make(map[int64]*models.EnrolmentContainer, len(f.containers))
	for id, c := range f.containers {
		copied := *c
		containers[id] = &copied
	}
	enrolments := make(map[int64]*models.UserEnrolment, len(f.userEnrolments))
	for id, ue := range f.userEnrolments {
		copied := *ue
		enrolments[id] = &copied
	}
	return containers, enrolments
}

func (f *fakeStore) InTx(ctx context.Context, fn func(Store) error) error {
	containers, enrolments := f.snapshot()
	if err := fn(f); err != nil {
		f.containers = containers
		f.userEnrolments = enrolments
		return err
	}
	return nil
}

func (f *fakeStore) ContainerExists(_ context.Context, bookingID string, excludeContainerID int64) (bool, error) {
	for _, c := range f.containers {
		if c.BookingID == bookingID && c.ID != excludeContainerID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateContainer(_ context.Context, courseID int64, bookingID string) (int64, error) {
	for _, c := range f.containers {
		if c.BookingID == bookingID {
			return 0, NewError(KindBookingIDDuplicate, bookingID)
		}
	}
	f.nextContainerID++
	f.containers[f.nextContainerID] = &models.EnrolmentContainer{
		ID:        f.nextContainerID,
		CourseID:  courseID,
		BookingID: bookingID,
		Enabled:   true,
	}
	return f.nextContainerID, nil
}

func (f *fakeStore) CreateUserEnrolment(_ context.Context, containerID, userID, roleID, timeStart, timeEnd int64, status models.EnrolmentStatus) (int64, error) {
	f.nextEnrolmentID++
	f.userEnrolments[f.nextEnrolmentID] = &models.UserEnrolment{
		ID:          f.nextEnrolmentID,
		ContainerID: containerID,
		UserID:      userID,
		TimeStart:   timeStart,
		TimeEnd:     timeEnd,
		Status:      status,
	}
	return f.nextEnrolmentID, nil
}

func (f *fakeStore) GetUserEnrolment(_ context.Context, id int64) (*models.UserEnrolment, error) {
	ue, ok := f.userEnrolments[id]
	if !ok {
		return nil, nil
	}
	copied := *ue
	return &copied, nil
}

func (f *fakeStore) GetContainer(_ context.Context, id int64) (*models.EnrolmentContainer, error) {
	c, ok := f.containers[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) UpdateUserEnrolment(_ context.Context, id, timeStart, timeEnd int64, status models.EnrolmentStatus) error {
	ue, ok := f.userEnrolments[id]
	if !ok {
		return errors.New("user enrolment not found")
	}
	ue.TimeStart = timeStart
	ue.TimeEnd = timeEnd
	ue.Status = status
	return nil
}

func (f *fakeStore) UpdateContainerBookingID(_ context.Context, containerID int64, bookingID string) error {
	c, ok := f.containers[containerID]
	if !ok {
		return errors.New("container not found")
	}
	c.BookingID = bookingID
	return nil
}

func (f *fakeStore) DeleteContainerAndEnrolments(_ context.Context, containerID int64) error {
	for id, ue := range f.userEnrolments {
		if ue.ContainerID == containerID {
			delete(f.userEnrolments, id)
		}
	}
	delete(f.containers, containerID)
	return nil
}

func (f *fakeStore) ListByCourse(_ context.Context, courseID int64) ([]models.CourseEnrolment, error) {
	var list []models.CourseEnrolment
	for _, ue := range f.userEnrolments {
		c, ok := f.containers[ue.ContainerID]
		if !ok || c.CourseID != courseID {
			continue
		}
		list = append(list, models.CourseEnrolment{
			UserEnrolmentID: ue.ID,
			UserID:          ue.UserID,
			BookingID:       c.BookingID,
			TimeStart:       ue.TimeStart,
			TimeEnd:         ue.TimeEnd,
			Suspend:         ue.Suspended(),
			ContainerID:     c.ID,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserEnrolmentID < list[j].UserEnrolmentID })
	return list, nil
}

func (f *fakeStore) ListUserWindows(_ context.Context, courseID, userID int64) ([]Window, error) {
	var windows []Window
	for _, ue := range f.userEnrolments {
		c, ok := f.containers[ue.ContainerID]
		if !ok || c.CourseID != courseID || ue.UserID != userID {
			continue
		}
		windows = append(windows, Window{ContainerID: c.ID, TimeStart: ue.TimeStart, TimeEnd: ue.TimeEnd})
	}
	return windows, nil
}

func (f *fakeStore) ListOrphanedContainers(_ context.Context) ([]models.EnrolmentContainer, error) {
	referenced := make(map[int64]bool)
	for _, ue := range f.userEnrolments {
		referenced[ue.ContainerID] = true
	}
	var orphans []models.EnrolmentContainer
	for _, c := range f.containers {
		if !referenced[c.ID] {
			orphans = append(orphans, *c)
		}
	}
	return orphans, nil
}

type fakeUsers struct{ ids map[int64]bool }

func (f *fakeUsers) Exists(_ context.Context, userID int64) (bool, error) {
	return f.ids[userID], nil
}

type fakeCourses struct{ ids map[int64]bool }

func (f *fakeCourses) Exists(_ context.Context, courseID int64) (bool, error) {
	return f.ids[courseID], nil
}

type roleCall struct {
	roleID, userID, courseID int64
}

type fakeRoles struct {
	assigned   []roleCall
	unassigned []roleCall
}

func (f *fakeRoles) Assign(_ context.Context, roleID, userID, courseID int64) error {
	f.assigned = append(f.assigned, roleCall{roleID, userID, courseID})
	return nil
}

func (f *fakeRoles) Unassign(_ context.Context, roleID, userID, courseID int64) error {
	f.unassigned = append(f.unassigned, roleCall{roleID, userID, courseID})
	return nil
}

type fakeRecompletion struct {
	installed bool
	configs   map[int64]*models.RecompletionConfig
}

func (f *fakeRecompletion) Installed(_ context.Context) (bool, error) {
	return f.installed, nil
}

func (f *fakeRecompletion) CourseConfig(_ context.Context, courseID int64) (*models.RecompletionConfig, error) {
	if cfg, ok := f.configs[courseID]; ok {
		return cfg, nil
	}
	return &models.RecompletionConfig{CourseID: courseID}, nil
}

const testRoleID = 5

func newTestService(store *fakeStore) (*Service, *fakeRoles) {
	users := &fakeUsers{ids: map[int64]bool{7: true, 8: true}}
	courses := &fakeCourses{ids: map[int64]bool{3: true}}
	roles := &fakeRoles{}
	recompletion := &fakeRecompletion{}
	return NewService(store, users, courses, roles, recompletion, testRoleID, nil), roles
}

func wantKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error of kind %s, got %v", kind, err)
	}
	if domainErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s", kind, domainErr.Kind)
	}
}

func TestCreateValidationOrder(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	// Unknown user wins over an empty booking id.
	_, err := svc.Create(ctx, CreateParams{UserID: 99, CourseID: 3, BookingID: ""})
	wantKind(t, err, KindUserNotFound)

	_, err = svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: ""})
	wantKind(t, err, KindBookingIDEmpty)

	_, err = svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1", TimeStart: -1})
	wantKind(t, err, KindTimeStartInvalid)

	_, err = svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1", TimeEnd: -1})
	wantKind(t, err, KindTimeEndInvalid)

	_, err = svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1", TimeStart: 2000, TimeEnd: 1000})
	wantKind(t, err, KindTimeStartEndOrder)

	if len(store.containers) != 0 || len(store.userEnrolments) != 0 {
		t.Fatal("failed validations must leave the store unchanged")
	}
}

func TestCreateDuplicateBookingID(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1", TimeStart: 1000, TimeEnd: 2000}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := svc.Create(ctx, CreateParams{UserID: 8, CourseID: 3, BookingID: "B1", TimeStart: 3000, TimeEnd: 4000})
	wantKind(t, err, KindBookingIDDuplicate)

	if len(store.containers) != 1 {
		t.Fatalf("expected exactly one container, got %d", len(store.containers))
	}
}

func TestCreateUnboundedOverlap(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "A1"}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	// A second unbounded booking for the same user+course always conflicts.
	_, err := svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "A2"})
	wantKind(t, err, KindBookingOverlap)

	if len(store.containers) != 1 {
		t.Fatal("overlap failure must roll back the second container")
	}
}

func TestCreateRequireRecompletion(t *testing.T) {
	store := newFakeStore()
	users := &fakeUsers{ids: map[int64]bool{7: true}}
	courses := &fakeCourses{ids: map[int64]bool{3: true}}
	roles := &fakeRoles{}
	ctx := context.Background()

	svc := NewService(store, users, courses, roles, &fakeRecompletion{}, testRoleID, nil)
	_, err := svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1", RequireRecompletion: true})
	wantKind(t, err, KindRecompletionNotExpectable)

	recompletion := &fakeRecompletion{installed: true, configs: map[int64]*models.RecompletionConfig{
		3: {CourseID: 3, Enabled: true, Mode: "scheduled"},
	}}
	svc = NewService(store, users, courses, roles, recompletion, testRoleID, nil)
	_, err = svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1", RequireRecompletion: true})
	wantKind(t, err, KindRecompletionNotOnDemand)

	recompletion.configs[3].Mode = models.RecompletionOnDemand
	if _, err := svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1", RequireRecompletion: true}); err != nil {
		t.Fatalf("create with on-demand recompletion failed: %v", err)
	}
}

func TestCreateListRoundTrip(t *testing.T) {
	store := newFakeStore()
	svc, roles := newTestService(store)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1", TimeStart: 1000, TimeEnd: 2000})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	list, err := svc.List(ctx, 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one enrolment, got %d", len(list))
	}
	got := list[0]
	if got.UserEnrolmentID != res.UserEnrolmentID || got.UserID != 7 ||
		got.BookingID != "B1" || got.TimeStart != 1000 || got.TimeEnd != 2000 || got.Suspend {
		t.Errorf("unexpected enrolment: %+v", got)
	}

	if len(roles.assigned) != 1 || roles.assigned[0] != (roleCall{testRoleID, 7, 3}) {
		t.Errorf("unexpected role assignments: %+v", roles.assigned)
	}
}

func TestListOrderedByEnrolmentID(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1", TimeStart: 1000, TimeEnd: 2000}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Create(ctx, CreateParams{UserID: 8, CourseID: 3, BookingID: "B2", TimeStart: 1000, TimeEnd: 2000}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	list, err := svc.List(ctx, 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].UserEnrolmentID >= list[1].UserEnrolmentID {
		t.Errorf("expected ascending enrolment ids, got %+v", list)
	}
}

func TestListUnknownCourse(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	_, err := svc.List(context.Background(), 42)
	wantKind(t, err, KindCourseNotExist)
}

func TestEditPartialUpdate(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	timeStart := int64(5000)
	suspend := true
	if err := svc.Edit(ctx, EditParams{UserEnrolmentID: res.UserEnrolmentID, TimeStart: &timeStart, Suspend: &suspend}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	list, err := svc.List(ctx, 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	got := list[0]
	if got.BookingID != "B1" {
		t.Errorf("booking id changed: %s", got.BookingID)
	}
	if got.TimeStart != 5000 || got.TimeEnd != 0 {
		t.Errorf("expected timeStart=5000 timeEnd=0, got %d/%d", got.TimeStart, got.TimeEnd)
	}
	if !got.Suspend {
		t.Error("expected enrolment to be suspended")
	}
}

func TestEditBookingIDDuplicate(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1", TimeStart: 1000, TimeEnd: 2000}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	res, err := svc.Create(ctx, CreateParams{UserID: 8, CourseID: 3, BookingID: "B2", TimeStart: 1000, TimeEnd: 2000})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	taken := "B1"
	err = svc.Edit(ctx, EditParams{UserEnrolmentID: res.UserEnrolmentID, BookingID: &taken})
	wantKind(t, err, KindBookingIDDuplicateMustChange)

	// Re-submitting the enrolment's own booking id is not a duplicate.
	own := "B2"
	if err := svc.Edit(ctx, EditParams{UserEnrolmentID: res.UserEnrolmentID, BookingID: &own}); err != nil {
		t.Fatalf("edit with own booking id failed: %v", err)
	}
}

func TestEditUnknownEnrolment(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	err := svc.Edit(context.Background(), EditParams{UserEnrolmentID: 99})
	wantKind(t, err, KindEnrolNoUserInstance)
}

func TestEditOverlapExcludesOwnContainer(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1", TimeStart: 1000, TimeEnd: 2000})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Moving the window of the only enrolment can never conflict with itself.
	timeStart := int64(1500)
	if err := svc.Edit(ctx, EditParams{UserEnrolmentID: res.UserEnrolmentID, TimeStart: &timeStart}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
}

func TestUnenrolRemovesContainer(t *testing.T) {
	store := newFakeStore()
	svc, roles := newTestService(store)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateParams{UserID: 7, CourseID: 3, BookingID: "B1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.Unenrol(ctx, res.UserEnrolmentID); err != nil {
		t.Fatalf("unenrol failed: %v", err)
	}

	list, err := svc.List(ctx, 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no enrolments after unenrol, got %d", len(list))
	}

	orphans, err := store.ListOrphanedContainers(ctx)
	if err != nil {
		t.Fatalf("orphan list failed: %v", err)
	}
	if len(orphans) != 0 {
		t.Error("container must be deleted, not orphaned")
	}
	if len(roles.unassigned) != 1 || roles.unassigned[0] != (roleCall{testRoleID, 7, 3}) {
		t.Errorf("unexpected role unassignments: %+v", roles.unassigned)
	}
}

func TestUnenrolUnknownEnrolment(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	err := svc.Unenrol(context.Background(), 99)
	wantKind(t, err, KindEnrolNoUserInstance)
}
