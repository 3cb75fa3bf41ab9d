package calls

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCall_Succeeded(t *testing.T) {
	cases := []struct {
		c    Call
		want bool
	}{
		{Call{Status: StatusEnded, EndedReason: EndedReasonAssistantEnded}, true},
		{Call{Status: StatusEnded, EndedReason: "customer-ended-call"}, false},
		{Call{Status: StatusInProgress, EndedReason: EndedReasonAssistantEnded}, false},
		{Call{}, false},
	}
	for _, tc := range cases {
		if got := tc.c.Succeeded(); got != tc.want {
			t.Fatalf("Succeeded(%+v) = %v, want %v", tc.c, got, tc.want)
		}
	}
}

func TestMemoryRepo_AppendIsIdempotent(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	now := time.Now()

	_ = r.Append(ctx, Call{ID: "c1", AssistantID: "a", Status: StatusEnded, CreatedAt: now})
	_ = r.Append(ctx, Call{ID: "c1", AssistantID: "a", Status: StatusQueued, CreatedAt: now})
	_ = r.Append(ctx, Call{ID: "c2", AssistantID: "a", CreatedAt: now.Add(time.Minute)})
	_ = r.Append(ctx, Call{ID: "c3", AssistantID: "b", CreatedAt: now})

	got, _ := r.ListByAssistant(ctx, "a", 0)
	if len(got) != 2 || got[0].ID != "c2" || got[1].Status != StatusEnded {
		t.Fatalf("unexpected rows %+v", got)
	}
}

func TestPostgresRepo_ListByAssistant(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "assistant_id", "phone_number", "duration", "status", "ended_reason", "cost", "transcript", "created_at"}).
		AddRow("c1", "a1", "+15550100", 75, "ended", EndedReasonAssistantEnded, 0.12, "hi", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM call_logs")).WithArgs("a1", 100).WillReturnRows(rows)

	got, err := NewPostgresRepo(db).ListByAssistant(context.Background(), "a1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || !got[0].Succeeded() || got[0].DurationSeconds != 75 {
		t.Fatalf("unexpected rows %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepo_AppendIgnoresDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := NewPostgresRepo(db).Append(context.Background(), Call{ID: "c1", AssistantID: "a1", Status: StatusEnded}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
