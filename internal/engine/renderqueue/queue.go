// Package renderqueue buffers one frame of draw commands and groups them by
// material.
//
// Submitting a command snapshots the transform's matrices into a frame-local
// array, so callers may move or drop the transform after Submit. Snapshots
// are valid until Reset.
package renderqueue

import (
	"cmp"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/engine/transform"
)

// Command is one indexed draw of a mesh with a material.
type Command struct {
	Mesh     registry.Handle
	Material registry.Handle
	// Snapshot indexes the queue's transform snapshots.
	Snapshot int
}

// Snapshot holds the matrices of a transform at submit time.
type Snapshot struct {
	Model  mgl32.Mat4
	Normal mgl32.Mat3
}

// Queue is a per-frame command list. It is not safe for concurrent use.
type Queue struct {
	commands  []Command
	snapshots []Snapshot
	runs      []int
	sorted    bool
}

// New returns a queue with room for capacity commands.
func New(capacity int) *Queue {
	return &Queue{
		commands:  make([]Command, 0, capacity),
		snapshots: make([]Snapshot, 0, capacity),
	}
}

// Submit appends a draw command. A dirty transform is updated first.
func (q *Queue) Submit(mesh, material registry.Handle, t *transform.Transform) {
	t.Update()
	q.snapshots = append(q.snapshots, Snapshot{Model: t.Model(), Normal: t.Normal()})
	q.commands = append(q.commands, Command{Mesh: mesh, Material: material, Snapshot: len(q.snapshots) - 1})
	q.sorted = false
}

// Sort orders commands by ascending material handle, keeping submission
// order among equal materials, and rebuilds the material run lengths.
func (q *Queue) Sort() {
	slices.SortStableFunc(q.commands, func(a, b Command) int {
		return cmp.Compare(a.Material, b.Material)
	})

	q.runs = q.runs[:0]
	for i := 0; i < len(q.commands); {
		j := i + 1
		for j < len(q.commands) && q.commands[j].Material == q.commands[i].Material {
			j++
		}
		q.runs = append(q.runs, j-i)
		i = j
	}
	q.sorted = true
}

// Sorted reports whether Sort ran since the last Submit or Reset.
func (q *Queue) Sorted() bool { return q.sorted }

// Len returns the number of queued commands.
func (q *Queue) Len() int { return len(q.commands) }

// Commands returns the queued commands. The slice is reused after Reset.
func (q *Queue) Commands() []Command { return q.commands }

// Runs returns the material run lengths computed by the last Sort. They sum
// to Len.
func (q *Queue) Runs() []int { return q.runs }

// Snapshot returns the transform snapshot of a command.
func (q *Queue) Snapshot(c Command) Snapshot { return q.snapshots[c.Snapshot] }

// ForEachGroup calls fn once per material run with the commands of that run,
// stopping at the first error. The queue must be sorted.
func (q *Queue) ForEachGroup(fn func(material registry.Handle, group []Command) error) error {
	start := 0
	for _, n := range q.runs {
		group := q.commands[start : start+n]
		if err := fn(group[0].Material, group); err != nil {
			return err
		}
		start += n
	}
	return nil
}

// Reset clears the queue content and keeps its capacity.
func (q *Queue) Reset() {
	q.commands = q.commands[:0]
	q.snapshots = q.snapshots[:0]
	q.runs = q.runs[:0]
	q.sorted = false
}
