package pregen

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/lingobot/internal/quiz"
	"github.com/example/lingobot/pkg/models"
)

// Queue sizing defaults.
const (
	// Number of ready quizzes kept per lesson
	DefaultTargetDepth = 5
	// Generation requests dispatched when a lesson is first prepared
	InitialBurst = 3
	// Number of background generation workers
	DefaultWorkers = 2
)

// request is the value-only payload handed to a generation worker. The
// slices are copied at enqueue time so the workers never share mutable
// state with the caller.
type request struct {
	Lesson  int
	Words   []models.VocabWord
	Statics []models.Question
}

// Entry is one ready-made quiz waiting to be consumed.
type Entry struct {
	ID        string
	Lesson    int
	Questions []models.Question
	CreatedAt time.Time
}

// Queue keeps a per-lesson buffer of pre-generated quizzes so a consumer
// can start one instantly. Generation runs on background workers; the
// queue refills itself as entries are consumed. A queue constructed with
// zero workers is a permanent no-op and every GetNext call misses, which
// pushes all generation onto the caller's synchronous path.
type Queue struct {
	targetDepth int

	mu      sync.Mutex
	ready   map[int][]*Entry
	pending map[int]int     // in-flight generation requests per lesson
	payload map[int]request // last prepared payload, reused for refills

	jobs    chan request
	results chan *Entry
	stop    chan struct{}
	wg      sync.WaitGroup

	disabled bool
}

// New creates a queue backed by the given number of generation workers.
func New(workers int) *Queue {
	q := &Queue{
		targetDepth: DefaultTargetDepth,
		ready:       make(map[int][]*Entry),
		pending:     make(map[int]int),
		payload:     make(map[int]request),
	}
	if workers <= 0 {
		q.disabled = true
		return q
	}

	q.jobs = make(chan request, workers*DefaultTargetDepth)
	q.results = make(chan *Entry, workers)
	q.stop = make(chan struct{})

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.wg.Add(1)
	go q.collector()

	return q
}

// worker generates quizzes from queued requests and publishes them to the
// collector. Each worker owns its generator: the shared math/rand source
// inside a generator is not safe for concurrent use.
func (q *Queue) worker() {
	defer q.wg.Done()
	gen := quiz.NewGenerator()

	for {
		select {
		case req, ok := <-q.jobs:
			if !ok {
				return
			}
			entry := &Entry{
				ID:        uuid.NewString(),
				Lesson:    req.Lesson,
				Questions: gen.Generate(req.Lesson, req.Words, req.Statics),
				CreatedAt: time.Now().UTC(),
			}
			select {
			case q.results <- entry:
			case <-q.stop:
				return
			}
		case <-q.stop:
			return
		}
	}
}

// collector appends completed quizzes to their lesson queue and keeps the
// steady-state refill going while the depth is below target.
func (q *Queue) collector() {
	defer q.wg.Done()
	for {
		select {
		case entry := <-q.results:
			q.deliver(entry)
		case <-q.stop:
			return
		}
	}
}

func (q *Queue) deliver(entry *Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending[entry.Lesson] > 0 {
		q.pending[entry.Lesson]--
	}

	// The lesson was cleared while this quiz was being generated.
	if _, active := q.payload[entry.Lesson]; !active {
		return
	}

	q.ready[entry.Lesson] = append(q.ready[entry.Lesson], entry)
	q.refillLocked(entry.Lesson)
}

// Prepare registers a lesson's word pool and static questions and kicks
// off the initial burst of background generation. Calling it again for
// the same lesson refreshes the payload used for refills.
func (q *Queue) Prepare(lesson int, words []models.VocabWord, statics []models.Question) {
	if q.disabled {
		return
	}

	req := request{
		Lesson:  lesson,
		Words:   append([]models.VocabWord(nil), words...),
		Statics: append([]models.Question(nil), statics...),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.payload[lesson] = req

	for i := 0; i < InitialBurst; i++ {
		if len(q.ready[lesson])+q.pending[lesson] >= q.targetDepth {
			break
		}
		q.dispatchLocked(req)
	}
}

// GetNext pops the oldest ready quiz for the lesson. It never blocks: a
// miss means the caller should generate synchronously instead.
func (q *Queue) GetNext(lesson int) (*Entry, bool) {
	if q.disabled {
		return nil, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.ready[lesson]
	if len(entries) == 0 {
		return nil, false
	}
	entry := entries[0]
	q.ready[lesson] = entries[1:]

	q.refillLocked(lesson)
	return entry, true
}

// IsReady reports whether a quiz is immediately available for the lesson.
func (q *Queue) IsReady(lesson int) bool {
	if q.disabled {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready[lesson]) > 0
}

// Depth returns the number of ready quizzes for the lesson.
func (q *Queue) Depth(lesson int) int {
	if q.disabled {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready[lesson])
}

// Clear discards the lesson's queue. Called when the consumer navigates
// away from the lesson; quizzes still in flight are dropped on arrival.
func (q *Queue) Clear(lesson int) {
	if q.disabled {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.ready, lesson)
	delete(q.payload, lesson)
}

// Stop shuts down the background workers. Pending generation is abandoned.
func (q *Queue) Stop() {
	if q.disabled {
		return
	}
	close(q.stop)
	q.wg.Wait()
}

// refillLocked dispatches one generation request if the lesson is below
// its target depth. Callers must hold q.mu.
func (q *Queue) refillLocked(lesson int) {
	req, active := q.payload[lesson]
	if !active {
		return
	}
	if len(q.ready[lesson])+q.pending[lesson] >= q.targetDepth {
		return
	}
	q.dispatchLocked(req)
}

// dispatchLocked hands a request to the workers without blocking. If the
// job buffer is full the request is dropped; the synchronous fallback
// path covers the consumer. Callers must hold q.mu.
func (q *Queue) dispatchLocked(req request) {
	select {
	case q.jobs <- req:
		q.pending[req.Lesson]++
	default:
	}
}
