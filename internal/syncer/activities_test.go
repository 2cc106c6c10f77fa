package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"stravation/internal/notion"
	"stravation/internal/notion/notiontest"
	"stravation/internal/storage"
	storage_mocks "stravation/internal/storage/mocks"
	"stravation/internal/strava"
	"stravation/internal/training"
)

const activitiesDB = "db-activities"

type fakeActivities struct {
	list    []strava.SummaryActivity
	details map[int64]*strava.DetailedActivity
	after   []time.Time
}

func (f *fakeActivities) ListActivities(_ context.Context, after time.Time) ([]strava.SummaryActivity, error) {
	f.after = append(f.after, after)
	return f.list, nil
}

func (f *fakeActivities) GetActivity(_ context.Context, id int64) (*strava.DetailedActivity, error) {
	return f.details[id], nil
}

func activitySchema() notion.Schema {
	return notion.Schema{
		PropName:     notion.TypeTitle,
		PropDate:     notion.TypeDate,
		PropSport:    notion.TypeSelect,
		PropDone:     notion.TypeStatus,
		PropDistance: notion.TypeNumber,
		PropStravaID: notion.TypeNumber,
		PropWeek:     notion.TypeRichText,
		PropHRAvg:    notion.TypeNumber,
		PropTRIMP:    notion.TypeNumber,
		PropLink:     notion.TypeURL,
	}
}

func sampleActivities() *fakeActivities {
	start := time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC)
	run := strava.SummaryActivity{
		ID: 101, Name: "Footing", SportType: "Run", Distance: 10234, MovingTime: 3000,
		TotalElevationGain: 120, StartDate: start, AverageHeartrate: 150, MaxHeartrate: 190,
	}
	ride := strava.SummaryActivity{
		ID: 102, Name: "Vélo", SportType: "Ride", Distance: 40000, MovingTime: 5400, StartDate: start.Add(24 * time.Hour),
	}
	return &fakeActivities{
		list: []strava.SummaryActivity{run, ride},
		details: map[int64]*strava.DetailedActivity{
			101: {SummaryActivity: run, Calories: 700, SufferScore: 42},
		},
	}
}

func openCache(t *testing.T) (*storage.SeenRepo, *storage.CheckpointRepo) {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "cache.sqlite3"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	return storage.NewSeenRepo(db), storage.NewCheckpointRepo(db)
}

func newActivitySyncer(src ActivitySource, pages Pages, seen storage.SeenStore, ck storage.CheckpointStore) *ActivitySyncer {
	s := NewActivitySyncer(ActivityConfig{
		Source:      src,
		Pages:       pages,
		Seen:        seen,
		Checkpoints: ck,
		DatabaseID:  activitiesDB,
		Location:    time.UTC,
		Sex:         training.Male,
	})
	s.now = func() time.Time { return time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestActivitySync_IdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	fake := notiontest.New()
	fake.AddDatabase(activitiesDB, activitySchema())
	seen, ck := openCache(t)
	src := sampleActivities()
	s := newActivitySyncer(src, fake, seen, ck)

	res, err := s.Sync(ctx, ActivityOptions{})
	if err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	if res.Written != 2 || fake.Creates != 2 {
		t.Fatalf("first Sync() = %+v, creates %d; want 2 written, 2 creates", res, fake.Creates)
	}

	res, err = s.Sync(ctx, ActivityOptions{})
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if res.Written != 0 || res.Skipped != 2 {
		t.Errorf("second Sync() = %+v, want 0 written, 2 skipped", res)
	}
	if fake.Creates != 2 || fake.Updates != 0 {
		t.Errorf("second Sync() wrote to Notion: creates %d, updates %d", fake.Creates, fake.Updates)
	}

	wantAfter := s.now().Unix()
	if got := src.after[1].Unix(); got != wantAfter {
		t.Errorf("second run listed after %d, want checkpoint %d", got, wantAfter)
	}

	res, err = s.Sync(ctx, ActivityOptions{Force: true})
	if err != nil {
		t.Fatalf("forced Sync() error = %v", err)
	}
	if res.Written != 2 || fake.Creates != 2 || fake.Updates != 2 {
		t.Errorf("forced Sync() = %+v, creates %d, updates %d; want updates in place", res, fake.Creates, fake.Updates)
	}
	if n := len(fake.Pages(activitiesDB)); n != 2 {
		t.Errorf("pages = %d, want 2", n)
	}
}

func TestActivitySync_WritesOnlySchemaProperties(t *testing.T) {
	ctx := context.Background()
	fake := notiontest.New()
	// No TRIMP, calories, pace or places columns: writing them would be rejected.
	fake.AddDatabase(activitiesDB, notion.Schema{
		PropName:     notion.TypeTitle,
		PropStravaID: notion.TypeRichText,
	})
	seen, ck := openCache(t)
	s := newActivitySyncer(sampleActivities(), fake, seen, ck)

	res, err := s.Sync(ctx, ActivityOptions{Places: true})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Written != 2 || res.Failed != 0 {
		t.Fatalf("Sync() = %+v, want 2 written", res)
	}
	pages := fake.Pages(activitiesDB)
	if got := pages[0].Text(PropStravaID); got != "101" {
		t.Errorf("Strava ID = %q, want %q", got, "101")
	}
}

func TestActivitySync_MissingIDProperty(t *testing.T) {
	fake := notiontest.New()
	fake.AddDatabase(activitiesDB, notion.Schema{PropName: notion.TypeTitle})
	seen, ck := openCache(t)
	s := newActivitySyncer(sampleActivities(), fake, seen, ck)

	if _, err := s.Sync(context.Background(), ActivityOptions{}); err == nil {
		t.Fatal("Sync() expected error for a database without Strava ID")
	}
}

func TestActivitySync_DryRunWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	seen := storage_mocks.NewMockSeenStore(ctrl)
	ck := storage_mocks.NewMockCheckpointStore(ctrl)
	ck.EXPECT().Get(gomock.Any(), storage.CheckpointLastSync).Return("", false, nil)
	seen.EXPECT().IsSeen(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)
	// No MarkSeen, Clear or Set: any call fails the test.

	fake := notiontest.New()
	fake.AddDatabase(activitiesDB, activitySchema())
	s := newActivitySyncer(sampleActivities(), fake, seen, ck)

	res, err := s.Sync(context.Background(), ActivityOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Written != 2 {
		t.Errorf("Sync() written = %d, want 2", res.Written)
	}
	if fake.Creates+fake.Updates != 0 {
		t.Errorf("dry run wrote to Notion: creates %d, updates %d", fake.Creates, fake.Updates)
	}
}

func TestActivitySync_WriteFailureIsCounted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	seen := storage_mocks.NewMockSeenStore(ctrl)
	ck := storage_mocks.NewMockCheckpointStore(ctrl)
	ck.EXPECT().Get(gomock.Any(), storage.CheckpointLastSync).Return("1700000000", true, nil)
	ck.EXPECT().Set(gomock.Any(), storage.CheckpointLastSync, gomock.Any()).Return(nil)
	seen.EXPECT().IsSeen(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)

	fake := notiontest.New()
	fake.AddDatabase(activitiesDB, activitySchema())
	fake.WriteErr = errors.New("notion down")
	s := newActivitySyncer(sampleActivities(), fake, seen, ck)

	res, err := s.Sync(context.Background(), ActivityOptions{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Failed != 2 || res.Written != 0 {
		t.Errorf("Sync() = %+v, want 2 failed", res)
	}
}

func TestActivitySyncer_After(t *testing.T) {
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		opts       ActivityOptions
		checkpoint string
		want       time.Time
	}{
		{
			name: "since wins and is truncated to midnight",
			opts: ActivityOptions{Since: time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC), Full: true},
			want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{name: "full lists everything", opts: ActivityOptions{Full: true}, checkpoint: "1700000000", want: time.Time{}},
		{name: "checkpoint", checkpoint: "1700000000", want: time.Unix(1700000000, 0)},
		{name: "default import window", want: now.AddDate(-5, 0, 0)},
		{name: "unreadable checkpoint", checkpoint: "soon", want: now.AddDate(-5, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ck := openCache(t)
			if tt.checkpoint != "" {
				if err := ck.Set(context.Background(), storage.CheckpointLastSync, tt.checkpoint); err != nil {
					t.Fatalf("Set() error = %v", err)
				}
			}
			s := newActivitySyncer(nil, nil, nil, ck)
			got, err := s.after(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("after() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("after() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBaseAndDetailProperties(t *testing.T) {
	s := newActivitySyncer(nil, nil, nil, nil)
	schema := notion.Schema{
		PropDone:       notion.TypeSelect,
		PropDistance:   notion.TypeNumber,
		PropMovingTime: notion.TypeNumber,
		PropDMinus:     notion.TypeNumber,
		PropYear:       notion.TypeNumber,
		PropPace:       notion.TypeRichText,
		PropWeek:       notion.TypeSelect, // wrong type: skipped
		PropTRIMP:      notion.TypeNumber,
		PropCalories:   notion.TypeNumber,
		PropWatts:      notion.TypeNumber,
	}
	a := sampleActivities().list[0]

	base := s.BaseProperties(schema, a)
	want := map[string]any{
		PropDone:       notion.Select(StatusDone),
		PropDistance:   notion.Number(10.23),
		PropMovingTime: notion.Number(3000),
		PropDMinus:     notion.Number(0),
		PropYear:       notion.Number(2025),
		PropPace:       notion.RichText("04:53"),
	}
	if len(base) != len(want) {
		t.Errorf("BaseProperties() has %d properties, want %d: %v", len(base), len(want), base)
	}
	for k, v := range want {
		if got := base[k]; !reflect.DeepEqual(got, v) {
			t.Errorf("BaseProperties()[%q] = %v, want %v", k, got, v)
		}
	}

	detail := s.DetailProperties(schema, a, &strava.DetailedActivity{SummaryActivity: a, Calories: 700})
	trimp, _ := training.TRIMP(3000, 150, 190, training.DefaultHRRest, training.Male)
	if got := detail[PropTRIMP]; !reflect.DeepEqual(got, notion.Number(trimp)) {
		t.Errorf("TRIMP = %v, want %v", got, trimp)
	}
	if got := detail[PropCalories]; !reflect.DeepEqual(got, notion.Number(700)) {
		t.Errorf("Calories = %v, want 700", got)
	}
	if _, ok := detail[PropWatts]; ok {
		t.Error("absent watts should be left unset")
	}
}
