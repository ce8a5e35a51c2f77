package action

import (
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-myhome/internal/command"
	"github.com/nerrad567/gray-logic-myhome/internal/queue"
)

func TestNew_Defaults(t *testing.T) {
	a := New("hall light", nil)

	if a.Priority() != queue.Low {
		t.Errorf("Priority() = %v, want low", a.Priority())
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d, want 0", a.Len())
	}
	if a.HasDelay() {
		t.Error("HasDelay() = true, want false")
	}
	if a.ID() == "" {
		t.Error("ID() is empty")
	}
	if a.Description() != "hall light" {
		t.Errorf("Description() = %q", a.Description())
	}
}

func TestNew_Options(t *testing.T) {
	a := New("x", nil, WithPriority(queue.High), WithID("act-1"))
	if a.Priority() != queue.High {
		t.Errorf("Priority() = %v, want high", a.Priority())
	}
	if a.ID() != "act-1" {
		t.Errorf("ID() = %q, want act-1", a.ID())
	}

	b := New("y", nil, WithPriority(queue.Priority(9)), WithID(""))
	if b.Priority() != queue.Low {
		t.Errorf("invalid priority should keep default, got %v", b.Priority())
	}
	if b.ID() == "" {
		t.Error("empty WithID should keep generated id")
	}
}

func TestNew_SensorIDsDeduplicated(t *testing.T) {
	a := New("x", []int{5, 3, 5, 9, 3})
	want := []int{5, 3, 9}
	if got := a.InhibitingSensorIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("InhibitingSensorIDs() = %v, want %v", got, want)
	}

	// Returned slice is a copy.
	got := a.InhibitingSensorIDs()
	got[0] = 100
	if a.InhibitingSensorIDs()[0] != 5 {
		t.Error("InhibitingSensorIDs() exposed internal state")
	}
}

func TestAppendCommand_DelaySetsFlag(t *testing.T) {
	a := New("blinds", nil)
	a.AppendCommand(command.OpenDirective("2", "1", "41"))
	if a.HasDelay() {
		t.Fatal("HasDelay() = true after directive only")
	}

	d, err := command.NewDelay(2 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	a.AppendCommand(d)
	a.AppendCommand(command.OpenDirective("2", "0", "41"))
	a.AppendCommand(nil)

	if !a.HasDelay() {
		t.Error("HasDelay() = false after appending a delay")
	}
	if a.Len() != 3 {
		t.Errorf("Len() = %d, want 3", a.Len())
	}
}

func TestPrependResetCommands(t *testing.T) {
	a := New("scene", []int{1})
	a.AppendCommand(command.OpenDirective("1", "1", "21"))

	a.PrependResetCommands([]command.Command{
		command.OpenDirective("1", "0", "21"),
		command.OpenDirective("1", "0", "22"),
	})

	if !a.HasDelay() {
		t.Error("HasDelay() = false after reset batch")
	}

	want := []string{"*1*0*21##", "*1*0*22##", "*1*1*21##"}
	cmds := a.Commands()
	if len(cmds) != len(want) {
		t.Fatalf("Commands() len = %d, want %d", len(cmds), len(want))
	}
	for i, c := range cmds {
		if c.String() != want[i] {
			t.Errorf("Commands()[%d] = %q, want %q", i, c, want[i])
		}
	}
}

func TestPrependResetCommands_EmptyBatchStillMarksDelay(t *testing.T) {
	a := New("x", nil)
	a.PrependResetCommands(nil)
	if !a.HasDelay() {
		t.Error("HasDelay() = false, want true")
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d, want 0", a.Len())
	}
}

func TestString(t *testing.T) {
	a := New("kitchen", nil)
	a.AppendCommand(command.OpenDirective("1", "1", "11"))
	want := "Action: kitchen [*1*1*11##]"
	if a.String() != want {
		t.Errorf("String() = %q, want %q", a.String(), want)
	}
}
