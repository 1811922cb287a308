package matching

import "github.com/axiomquant/tradecore/pkg/fixedpoint"

// maxPriceHeap keeps bid price levels with the highest price on top,
// giving O(1) best-bid peek. Adapted from the teacher's
// orderbook.MaxPriceHeap, retyped to fixedpoint.Price.
type maxPriceHeap []fixedpoint.Price

func (h maxPriceHeap) Len() int           { return len(h) }
func (h maxPriceHeap) Less(i, j int) bool { return h[i] > h[j] }
func (h maxPriceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *maxPriceHeap) Push(x any) { *h = append(*h, x.(fixedpoint.Price)) }

func (h *maxPriceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h maxPriceHeap) Peek() (fixedpoint.Price, bool) {
	if len(h) == 0 {
		return 0, false
	}
	return h[0], true
}

// minPriceHeap keeps ask price levels with the lowest price on top.
type minPriceHeap []fixedpoint.Price

func (h minPriceHeap) Len() int           { return len(h) }
func (h minPriceHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h minPriceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minPriceHeap) Push(x any) { *h = append(*h, x.(fixedpoint.Price)) }

func (h *minPriceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h minPriceHeap) Peek() (fixedpoint.Price, bool) {
	if len(h) == 0 {
		return 0, false
	}
	return h[0], true
}
