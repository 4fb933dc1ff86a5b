package booking

// DefaultPageSize is the number of dates or time slots visible at once.
const DefaultPageSize = 4

// Window returns items[start : start+size] clamped to the slice bounds.
func Window[T any](items []T, start, size int) []T {
	if size <= 0 || len(items) == 0 {
		return []T{}
	}
	if start < 0 {
		start = 0
	}
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

// Next advances start by one page if another page exists. It never wraps.
func Next(start, size, length int) int {
	if size <= 0 {
		return start
	}
	if start+size < length {
		return start + size
	}
	return start
}

// Prev retreats start by one page, stopping at zero.
func Prev(start, size int) int {
	if size <= 0 {
		return start
	}
	start -= size
	if start < 0 {
		return 0
	}
	return start
}

// Pager is a cursor over one windowed list. A Size of zero or less behaves as
// DefaultPageSize.
type Pager struct {
	Start int
	Size  int
}

func NewPager(size int) Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return Pager{Size: size}
}

func (p Pager) size() int {
	if p.Size <= 0 {
		return DefaultPageSize
	}
	return p.Size
}

func (p *Pager) Next(length int) { p.Start = Next(p.Start, p.size(), length) }

func (p *Pager) Prev() { p.Start = Prev(p.Start, p.size()) }

func (p *Pager) Reset() { p.Start = 0 }

// Clamp pulls Start back onto the last page after the list shrank.
func (p *Pager) Clamp(length int) {
	if p.Start < length {
		return
	}
	if length == 0 {
		p.Start = 0
		return
	}
	p.Start = ((length - 1) / p.size()) * p.size()
}

// Reveal moves the cursor to the page that contains index.
func (p *Pager) Reveal(index int) {
	if index < 0 {
		return
	}
	p.Start = (index / p.size()) * p.size()
}

func (p Pager) HasPrev() bool { return p.Start > 0 }

func (p Pager) HasNext(length int) bool { return p.Start+p.size() < length }

// Bounds returns the effective window start and size.
func (p Pager) Bounds() (start, size int) { return p.Start, p.size() }
