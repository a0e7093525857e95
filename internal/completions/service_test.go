package completions

import (
	"context"
	"errors"
	"testing"

	"github.com/coursebridge/backend/internal/enrolments"
	"github.com/coursebridge/backend/internal/models"
)

type fakeStore struct {
	userEnrolments map[int64]*models.UserEnrolment
	containers     map[int64]*models.EnrolmentContainer
	lookups        int
}

func (f *fakeStore) GetUserEnrolment(_ context.Context, id int64) (*models.UserEnrolment, error) {
	f.lookups++
	ue, ok := f.userEnrolments[id]
	if !ok {
		return nil, nil
	}
	return ue, nil
}

func (f *fakeStore) GetContainer(_ context.Context, id int64) (*models.EnrolmentContainer, error) {
	c, ok := f.containers[id]
	if !ok {
		return nil, nil
	}
	return c, nil
}

type completionKey struct{ courseID, userID int64 }

type fakeGrades struct {
	enabled       map[int64]bool
	enabledCalls  int
	timeCompleted map[completionKey]int64
	gradeItems    map[int64]*models.GradeItem
	grades        map[completionKey]float64
}

func (f *fakeGrades) CompletionEnabled(_ context.Context, courseID int64) (bool, error) {
	f.enabledCalls++
	return f.enabled[courseID], nil
}

func (f *fakeGrades) TimeCompleted(_ context.Context, courseID, userID int64) (int64, bool, error) {
	tc, ok := f.timeCompleted[completionKey{courseID, userID}]
	return tc, ok, nil
}

func (f *fakeGrades) CourseGradeItem(_ context.Context, courseID int64) (*models.GradeItem, error) {
	return f.gradeItems[courseID], nil
}

func (f *fakeGrades) UserGrade(_ context.Context, itemID, userID int64) (*models.Grade, error) {
	for key, grade := range f.grades {
		if key.courseID == itemID && key.userID == userID {
			return &models.Grade{ItemID: itemID, UserID: userID, FinalGrade: grade}, nil
		}
	}
	return nil, nil
}

type fakeRegrade struct {
	triggered map[int64]int
	fail      bool
}

func (f *fakeRegrade) TriggerRegrade(_ context.Context, courseID int64) error {
	if f.triggered == nil {
		f.triggered = make(map[int64]int)
	}
	f.triggered[courseID]++
	if f.fail {
		return errors.New("queue unavailable")
	}
	return nil
}

type fakeRecompletion struct {
	installed bool
	config    *models.RecompletionConfig
	warnings  []string
	resets    int
}

func (f *fakeRecompletion) Installed(_ context.Context) (bool, error) {
	return f.installed, nil
}

func (f *fakeRecompletion) CourseConfig(_ context.Context, courseID int64) (*models.RecompletionConfig, error) {
	if f.config != nil {
		return f.config, nil
	}
	return &models.RecompletionConfig{CourseID: courseID}, nil
}

func (f *fakeRecompletion) ResetUser(_ context.Context, _, _ int64) ([]string, error) {
	f.resets++
	return f.warnings, nil
}

func newFixture() (*fakeStore, *fakeGrades, *fakeRegrade) {
	store := &fakeStore{
		userEnrolments: map[int64]*models.UserEnrolment{
			1: {ID: 1, ContainerID: 10, UserID: 7},
			2: {ID: 2, ContainerID: 11, UserID: 8},
		},
		containers: map[int64]*models.EnrolmentContainer{
			10: {ID: 10, CourseID: 3, BookingID: "B1"},
			11: {ID: 11, CourseID: 3, BookingID: "B2"},
		},
	}
	grades := &fakeGrades{
		enabled:       map[int64]bool{3: true},
		timeCompleted: make(map[completionKey]int64),
		gradeItems:    make(map[int64]*models.GradeItem),
		grades:        make(map[completionKey]float64),
	}
	return store, grades, &fakeRegrade{}
}

func wantKind(t *testing.T, err error, kind enrolments.ErrorKind) {
	t.Helper()
	var domainErr *enrolments.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error of kind %s, got %v", kind, err)
	}
	if domainErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s", kind, domainErr.Kind)
	}
}

func TestGetCompletionsBatchLimit(t *testing.T) {
	store, grades, regrade := newFixture()
	svc := NewService(store, grades, regrade, nil, 100, nil)

	ids := make([]int64, 101)
	_, err := svc.GetCompletions(context.Background(), ids)
	wantKind(t, err, enrolments.KindRequestTooLarge)

	if store.lookups != 0 {
		t.Error("over-limit batch must not touch the store")
	}
}

func TestGetCompletionsMemoAndSingleRegrade(t *testing.T) {
	store, grades, regrade := newFixture()
	svc := NewService(store, grades, regrade, nil, 100, nil)

	records, err := svc.GetCompletions(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if grades.enabledCalls != 1 {
		t.Errorf("completion-enabled lookup must be memoized per course, got %d calls", grades.enabledCalls)
	}
	if regrade.triggered[3] != 1 {
		t.Errorf("expected one regrade trigger for the course, got %d", regrade.triggered[3])
	}
}

func TestGetCompletionsOrderPreserved(t *testing.T) {
	store, grades, regrade := newFixture()
	svc := NewService(store, grades, regrade, nil, 100, nil)

	records, err := svc.GetCompletions(context.Background(), []int64{2, 1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if records[0].UserEnrolmentID != 2 || records[1].UserEnrolmentID != 1 {
		t.Errorf("input order not preserved: %+v", records)
	}
}

func TestGetCompletionsUnknownIDAbortsBatch(t *testing.T) {
	store, grades, regrade := newFixture()
	svc := NewService(store, grades, regrade, nil, 100, nil)

	_, err := svc.GetCompletions(context.Background(), []int64{1, 99})
	wantKind(t, err, enrolments.KindEnrolNoUserInstance)
}

func TestGetCompletionsRegradeFailureIsNotFatal(t *testing.T) {
	store, grades, regrade := newFixture()
	regrade.fail = true
	svc := NewService(store, grades, regrade, nil, 100, nil)

	records, err := svc.GetCompletions(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("query must survive a regrade trigger failure: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestGetCompletionsCompletionDisabled(t *testing.T) {
	store, grades, regrade := newFixture()
	grades.enabled[3] = false
	svc := NewService(store, grades, regrade, nil, 100, nil)

	records, err := svc.GetCompletions(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	record := records[0]
	if record.CanBeCompleted || record.Completed {
		t.Errorf("disabled course must yield an empty record: %+v", record)
	}
	if record.TimeCompleted != nil || record.FinalGrade != nil || record.Passed != nil {
		t.Errorf("disabled course must leave grade fields null: %+v", record)
	}
}

func TestGetCompletionsNotCompleted(t *testing.T) {
	store, grades, regrade := newFixture()
	svc := NewService(store, grades, regrade, nil, 100, nil)

	records, err := svc.GetCompletions(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	record := records[0]
	if !record.CanBeCompleted || record.Completed {
		t.Errorf("expected can-be-completed but not completed: %+v", record)
	}
}

func TestGetCompletionsCompletedWithGrade(t *testing.T) {
	store, grades, regrade := newFixture()
	grades.timeCompleted[completionKey{3, 7}] = 1700000000
	grades.gradeItems[3] = &models.GradeItem{ID: 3, CourseID: 3, GradeMin: 0, GradeMax: 100, GradePass: 50}
	grades.grades[completionKey{3, 7}] = 82.5
	svc := NewService(store, grades, regrade, nil, 100, nil)

	records, err := svc.GetCompletions(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	record := records[0]
	if !record.Completed || record.TimeCompleted == nil || *record.TimeCompleted != 1700000000 {
		t.Fatalf("expected completed record: %+v", record)
	}
	if record.FinalGrade == nil || *record.FinalGrade != "82.50" {
		t.Errorf("expected formatted grade 82.50, got %v", record.FinalGrade)
	}
	if record.Passed == nil || !*record.Passed {
		t.Errorf("expected passed=true, got %v", record.Passed)
	}
}

func TestGetCompletionsNoPassThreshold(t *testing.T) {
	store, grades, regrade := newFixture()
	grades.timeCompleted[completionKey{3, 7}] = 1700000000
	grades.gradeItems[3] = &models.GradeItem{ID: 3, CourseID: 3, GradeMin: 0, GradeMax: 100, GradePass: 0}
	grades.grades[completionKey{3, 7}] = 40
	svc := NewService(store, grades, regrade, nil, 100, nil)

	records, err := svc.GetCompletions(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if records[0].Passed != nil {
		t.Errorf("pass grade of zero must leave passed null, got %v", *records[0].Passed)
	}
}

func TestResetCompletionNotInstalled(t *testing.T) {
	store, grades, regrade := newFixture()
	svc := NewService(store, grades, regrade, &fakeRecompletion{}, 100, nil)

	_, _, err := svc.ResetCompletion(context.Background(), 1)
	wantKind(t, err, enrolments.KindRecompletionNotInstalled)

	// The installed check runs before the enrolment lookup.
	if store.lookups != 0 {
		t.Error("missing collaborator must be detected before the lookup")
	}
}

func TestResetCompletionNotEnabled(t *testing.T) {
	store, grades, regrade := newFixture()
	recompletion := &fakeRecompletion{installed: true}
	svc := NewService(store, grades, regrade, recompletion, 100, nil)

	_, _, err := svc.ResetCompletion(context.Background(), 1)
	wantKind(t, err, enrolments.KindRecompletionNotEnabled)
}

func TestResetCompletionNotOnDemand(t *testing.T) {
	store, grades, regrade := newFixture()
	recompletion := &fakeRecompletion{
		installed: true,
		config:    &models.RecompletionConfig{CourseID: 3, Enabled: true, Mode: "scheduled"},
	}
	svc := NewService(store, grades, regrade, recompletion, 100, nil)

	_, _, err := svc.ResetCompletion(context.Background(), 1)
	wantKind(t, err, enrolments.KindRecompletionNotOnDemand)
}

func TestResetCompletionSuccess(t *testing.T) {
	store, grades, regrade := newFixture()
	recompletion := &fakeRecompletion{
		installed: true,
		config:    &models.RecompletionConfig{CourseID: 3, Enabled: true, Mode: models.RecompletionOnDemand},
	}
	svc := NewService(store, grades, regrade, recompletion, 100, nil)

	result, warnings, err := svc.ResetCompletion(context.Background(), 1)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if !result || len(warnings) != 0 {
		t.Errorf("expected clean reset, got result=%v warnings=%v", result, warnings)
	}
	if recompletion.resets != 1 {
		t.Errorf("expected one collaborator reset, got %d", recompletion.resets)
	}
}

func TestResetCompletionWarnings(t *testing.T) {
	store, grades, regrade := newFixture()
	recompletion := &fakeRecompletion{
		installed: true,
		config:    &models.RecompletionConfig{CourseID: 3, Enabled: true, Mode: models.RecompletionOnDemand},
		warnings:  []string{"could not reset grades", ""},
	}
	svc := NewService(store, grades, regrade, recompletion, 100, nil)

	result, warnings, err := svc.ResetCompletion(context.Background(), 1)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if result {
		t.Error("warnings must flip the result to false")
	}
	if len(warnings) != 1 {
		t.Fatalf("empty warning strings must be dropped, got %v", warnings)
	}
	w := warnings[0]
	if w.Item != "course" || w.ItemID != 3 || w.Code != "recompletion_error" || w.Message != "could not reset grades" {
		t.Errorf("unexpected warning: %+v", w)
	}
}
