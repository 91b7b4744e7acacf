package rosbridge

import "sync"

// PendingTask is a parsed message waiting for the pump
type PendingTask struct {
	Topic      string
	Subscriber TopicDescriptor
	Message    Message
}

// ServiceResult is the latest unconsumed service response
type ServiceResult struct {
	Service string
	Payload string
}

// DeliveryQueue hands parsed messages from the receive loop to the pump. It
// holds at most one task per topic: offering a topic that is already queued
// replaces the payload in place and keeps its position. It also holds the
// single service result slot. Both are guarded by one mutex that is never
// held across parsing or socket I/O.
type DeliveryQueue struct {
	mu      sync.Mutex
	order   []*PendingTask
	byTopic map[string]*PendingTask
	service *ServiceResult
}

// NewDeliveryQueue creates an empty queue
func NewDeliveryQueue() *DeliveryQueue {
	return &DeliveryQueue{byTopic: make(map[string]*PendingTask)}
}

// Offer queues task, replacing a queued task for the same topic. It reports
// whether a replacement happened.
func (q *DeliveryQueue) Offer(task PendingTask) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if queued, ok := q.byTopic[task.Topic]; ok {
		*queued = task
		return true
	}

	t := task
	q.order = append(q.order, &t)
	q.byTopic[t.Topic] = &t
	return false
}

// Drain removes and returns the front task
func (q *DeliveryQueue) Drain() (PendingTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		return PendingTask{}, false
	}

	front := q.order[0]
	n := copy(q.order, q.order[1:])
	q.order[n] = nil
	q.order = q.order[:n]
	delete(q.byTopic, front.Topic)

	return *front, true
}

// Len returns the number of queued topics
func (q *DeliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Topics returns the queued topics front to back
func (q *DeliveryQueue) Topics() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	topics := make([]string, len(q.order))
	for i, t := range q.order {
		topics[i] = t.Topic
	}
	return topics
}

// SetServiceResult stores r, overwriting an unconsumed result. It reports
// whether one was overwritten.
func (q *DeliveryQueue) SetServiceResult(r ServiceResult) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	overwrote := q.service != nil
	q.service = &r
	return overwrote
}

// TakeServiceResult removes and returns the pending service result
func (q *DeliveryQueue) TakeServiceResult() (ServiceResult, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.service == nil {
		return ServiceResult{}, false
	}
	r := *q.service
	q.service = nil
	return r, true
}
