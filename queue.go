package alarmtimer

import "container/heap"

// alarmHeap is a min-heap of *Alarm ordered by absolute expiry. The order
// among alarms with equal expiry is whatever container/heap's sifting
// leaves, which is not observable by callers.
//
// This is the intrusive-queue design from the source, rewritten as a
// key→owner-handle structure: each Alarm carries its own heap index
// (alarmNode.index) so removeLocked can drop an arbitrary alarm in
// O(log n) instead of requiring a full scan.
type alarmHeap []*Alarm

func (h alarmHeap) Len() int { return len(h) }

func (h alarmHeap) Less(i, j int) bool {
	return h[i].node.expires.Before(h[j].node.expires)
}

func (h alarmHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].node.index = i
	h[j].node.index = j
}

func (h *alarmHeap) Push(x any) {
	a := x.(*Alarm)
	a.node.index = len(*h)
	*h = append(*h, a)
}

func (h *alarmHeap) Pop() any {
	old := *h
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.node.index = -1
	*h = old[:n-1]
	return a
}

var _ heap.Interface = (*alarmHeap)(nil)
