package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
)

func decisionAt(co2 int) types.Decision {
	return types.Decision{
		ID:        uuid.New(),
		Timestamp: time.Now(),
		Snapshot:  types.SensorSnapshot{CO2: co2},
		Enabled:   true,
	}
}

func TestAppendAndLen(t *testing.T) {
	l := NewLog(3)
	if l.Len() != 0 {
		t.Fatalf("new log should be empty, got %d", l.Len())
	}

	l.Append(decisionAt(100))
	l.Append(decisionAt(200))
	if l.Len() != 2 {
		t.Errorf("Len = %d, want 2", l.Len())
	}
}

func TestEvictionKeepsNewest(t *testing.T) {
	l := NewLog(3)
	for i := 1; i <= 5; i++ {
		l.Append(decisionAt(i * 100))
	}

	if l.Len() != 3 {
		t.Fatalf("Len = %d, want 3", l.Len())
	}

	got := l.Snapshot()
	want := []int{500, 400, 300}
	for i, w := range want {
		if got[i].Snapshot.CO2 != w {
			t.Errorf("Snapshot()[%d].CO2 = %d, want %d", i, got[i].Snapshot.CO2, w)
		}
	}
}

func TestSnapshotNewestFirst(t *testing.T) {
	l := NewLog(10)
	l.Append(decisionAt(100))
	l.Append(decisionAt(200))
	l.Append(decisionAt(300))

	got := l.Snapshot()
	if len(got) != 3 {
		t.Fatalf("Snapshot len = %d, want 3", len(got))
	}
	if got[0].Snapshot.CO2 != 300 || got[2].Snapshot.CO2 != 100 {
		t.Errorf("snapshot order wrong: %d...%d", got[0].Snapshot.CO2, got[2].Snapshot.CO2)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	l := NewLog(5)
	l.Append(decisionAt(100))

	view := l.Snapshot()
	view[0].Snapshot.CO2 = 999

	if l.Snapshot()[0].Snapshot.CO2 != 100 {
		t.Error("mutating a snapshot must not affect the log")
	}
}

func TestLatest(t *testing.T) {
	l := NewLog(2)
	if _, ok := l.Latest(); ok {
		t.Fatal("empty log reported a latest decision")
	}

	l.Append(decisionAt(100))
	l.Append(decisionAt(200))
	l.Append(decisionAt(300)) // wraps

	latest, ok := l.Latest()
	if !ok || latest.Snapshot.CO2 != 300 {
		t.Errorf("Latest = (%v, %v), want co2 300", latest.Snapshot.CO2, ok)
	}
}

func TestDefaultCapacity(t *testing.T) {
	l := NewLog(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		l.Append(decisionAt(i))
	}
	if l.Len() != DefaultCapacity {
		t.Errorf("Len = %d, want %d", l.Len(), DefaultCapacity)
	}
}
