package workload

// order tracks uids in a chosen iteration order and keeps any live
// iterators repositioned across inserts/erases (spec.md §4.4, testable
// property #6 "iteration safety"): erasing the element an iterator is
// about to return advances it to the next valid element instead of
// reading a stale slot.
type order struct {
	uids  []string
	iters []*iterPos
}

type iterPos struct {
	pos int
}

func (o *order) insert(uid string, less func(a, b string) bool) {
	i := 0
	for i < len(o.uids) && less(o.uids[i], uid) {
		i++
	}
	o.uids = append(o.uids, "")
	copy(o.uids[i+1:], o.uids[i:])
	o.uids[i] = uid
	for _, it := range o.iters {
		if it.pos > i {
			it.pos++
		}
	}
}

func (o *order) remove(uid string) {
	i := -1
	for idx, u := range o.uids {
		if u == uid {
			i = idx
			break
		}
	}
	if i < 0 {
		return
	}
	o.uids = append(o.uids[:i], o.uids[i+1:]...)
	for _, it := range o.iters {
		if it.pos > i {
			it.pos--
		}
	}
}

// newIterator returns a fresh retained cursor over the current ordering.
func (o *order) newIterator() *iterPos {
	it := &iterPos{pos: 0}
	o.iters = append(o.iters, it)
	return it
}

// next returns the next uid and true, or "" and false at End. Finished
// iterators (End reached) are pruned from the live set lazily.
func (o *order) next(it *iterPos) (string, bool) {
	if it.pos >= len(o.uids) {
		for i, live := range o.iters {
			if live == it {
				o.iters = append(o.iters[:i], o.iters[i+1:]...)
				break
			}
		}
		return "", false
	}
	uid := o.uids[it.pos]
	it.pos++
	return uid, true
}
