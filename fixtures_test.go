package livexpr

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/livexpr/notify"
)

type person struct {
	notify.Source

	mu      sync.Mutex
	name    *string
	age     int
	friends *notify.List[string]
}

func newPerson(name string, age int) *person {
	return &person{name: &name, age: age, friends: notify.NewList[string]()}
}

func (p *person) Name() *string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *person) SetName(v *string) {
	p.mu.Lock()
	p.name = v
	p.mu.Unlock()
	p.RaisePropertyChanged(p, "Name")
}

func (p *person) Age() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.age
}

func (p *person) SetAge(v int) {
	p.mu.Lock()
	changed := p.age != v
	p.age = v
	p.mu.Unlock()
	if changed {
		p.RaisePropertyChanged(p, "Age")
	}
}

func (p *person) Friends() *notify.List[string] { return p.friends }

type resource struct {
	ID     int
	closed atomic.Int32
}

func newResource(id int) *resource { return &resource{ID: id} }

func (r *resource) Close() error {
	r.closed.Add(1)
	return nil
}

type settings struct {
	Label string
	Limit int
}

func ptr[T any](v T) *T { return &v }

func reflectTypeOfPerson() reflect.Type { return reflect.TypeFor[*person]() }
