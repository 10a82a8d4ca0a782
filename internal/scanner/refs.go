package scanner

import "weak"

// Ref is a handle to a collaborator the scanner does not own. Get reports
// false once the referent is gone.
type Ref[I any] interface {
	Get() (I, bool)
}

type weakRef[T, I any] struct {
	ptr weak.Pointer[T]
	as  func(*T) I
}

func (r weakRef[T, I]) Get() (I, bool) {
	p := r.ptr.Value()
	if p == nil {
		var zero I
		return zero, false
	}
	return r.as(p), true
}

// WeakView returns a reference to v that does not keep it alive.
func WeakView[T any, P interface {
	*T
	View
}](v P) Ref[View] {
	return weakRef[T, View]{ptr: weak.Make((*T)(v)), as: func(p *T) View { return P(p) }}
}

// WeakDisplay returns a reference to d that does not keep it alive.
func WeakDisplay[T any, P interface {
	*T
	Display
}](d P) Ref[Display] {
	return weakRef[T, Display]{ptr: weak.Make((*T)(d)), as: func(p *T) Display { return P(p) }}
}

type strongRef[I any] struct {
	v     I
	valid bool
}

func (r strongRef[I]) Get() (I, bool) { return r.v, r.valid }

// StrongView returns a reference that keeps v alive. It is meant for
// callers that manage the view's lifetime themselves. A nil v, typed or not,
// yields a reference that is never valid.
func StrongView[T any, P interface {
	*T
	View
}](v P) Ref[View] {
	if v == nil {
		return strongRef[View]{}
	}
	return strongRef[View]{v: v, valid: true}
}

// StrongDisplay is StrongView for displays.
func StrongDisplay[T any, P interface {
	*T
	Display
}](d P) Ref[Display] {
	if d == nil {
		return strongRef[Display]{}
	}
	return strongRef[Display]{v: d, valid: true}
}
