package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOperationEqual(t *testing.T) {
	id1 := uuid.New()
	id2 := uuid.New()
	old := "old"
	new_ := "new"
	empty := ""
	ts := time.Now()

	tests := []struct {
		name  string
		a, b  Operation
		equal bool
	}{
		{"create same uuid", Create(id1), Create(id1), true},
		{"create different uuid", Create(id1), Create(id2), false},
		{"delete vs create", Delete(id1), Create(id1), false},
		{"undo points always equal", UndoPoint(), UndoPoint(), true},
		{
			"update identical",
			Update(id1, "title", &old, &new_, ts),
			Update(id1, "title", &old, &new_, ts),
			true,
		},
		{
			"update nil vs empty old value differ",
			Update(id1, "title", nil, &new_, ts),
			Update(id1, "title", &empty, &new_, ts),
			false,
		},
		{
			"update different property",
			Update(id1, "title", &old, &new_, ts),
			Update(id1, "status", &old, &new_, ts),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
		})
	}
}

func TestLowestEmptySlot(t *testing.T) {
	u := uuid.New()
	tests := []struct {
		name string
		ws   WorkingSet
		want int
	}{
		{"empty sentinel only", WorkingSet{nil}, 1},
		{"zero length", WorkingSet{}, 1},
		{"all occupied appends", WorkingSet{nil, &u, &u}, 3},
		{"gap at 2", WorkingSet{nil, &u, nil, &u}, 2},
		{"gap at 1", WorkingSet{nil, nil, &u}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LowestEmptySlot(tt.ws))
		})
	}
}

func TestTaskMapClone(t *testing.T) {
	m := TaskMapWith([2]string{"k", "v"})
	c := m.Clone()
	c["k"] = "changed"
	assert.Equal(t, "v", m["k"])
	assert.Nil(t, TaskMap(nil).Clone())
}
