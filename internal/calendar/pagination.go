package calendar

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest: номер страницы (с 1) и её размер.
type PageRequest struct {
	Page int
	Size int
}

// Normalize подставляет дефолты при некорректных значениях.
func (r PageRequest) Normalize() PageRequest {
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.Size <= 0 {
		r.Size = DefaultPageSize
	}
	if r.Size > MaxPageSize {
		r.Size = MaxPageSize
	}
	return r
}

func (r PageRequest) Offset() int {
	n := r.Normalize()
	return (n.Page - 1) * n.Size
}

func (r PageRequest) Limit() int { return r.Normalize().Size }

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items    []T
	Page     int
	PageSize int
	HasNext  bool
	HasPrev  bool
	Total    int
}

// NewPage собирает страницу из уже отрезанных элементов и общего количества.
func NewPage[T any](items []T, total int, req PageRequest) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:    items,
		Page:     req.Page,
		PageSize: req.Size,
		HasPrev:  req.Page > 1,
		HasNext:  req.Offset()+len(items) < total,
		Total:    total,
	}
}

// Paginate режет полный список в памяти.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	req = req.Normalize()
	total := len(items)

	start := req.Offset()
	if start > total {
		start = total
	}
	end := start + req.Size
	if end > total {
		end = total
	}
	return NewPage(items[start:end], total, req)
}
