package app

import (
	"context"
	"reflect"
	"sync"

	"github.com/specialistvlad/livexpr"
	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/notify"
)

// Person is the live object the demonstration observes.
type Person struct {
	notify.Source

	mu   sync.RWMutex
	name *string
}

// NewPerson returns a person named name.
func NewPerson(name string) *Person {
	return &Person{name: &name}
}

// Name returns the current name, nil when unknown.
func (p *Person) Name() *string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// SetName replaces the name and raises "Name".
func (p *Person) SetName(name *string) {
	p.mu.Lock()
	p.name = name
	p.mu.Unlock()
	p.RaisePropertyChanged(p, "Name")
}

type demoModule struct{}

// Register makes the demonstration types available to policy files.
func (m *demoModule) Register(c *livexpr.Catalog) {
	c.RegisterType(reflect.TypeFor[Person](), "Person")
	c.RegisterType(reflect.TypeFor[notify.List[string]](), "StringList")
}

// runNameDemo follows len(*p.Name) while the name changes and finally goes
// away.
func (a *App) runNameDemo(ctx context.Context, obs *livexpr.Observer) error {
	p := NewPerson("John")
	param := expr.ParamOf[*Person]("p")
	l := expr.Lambda(expr.Len(expr.Deref(expr.Member(param, "Name"))), param)

	t, err := livexpr.Observe1[*Person, int](obs, l, p)
	if err != nil {
		return err
	}
	defer t.Close()

	a.printf("name length: %s\n", t.Evaluation())
	cancel := t.Watch(func(_, ev livexpr.Evaluation) {
		a.printf("name length: %s\n", ev)
	})
	defer cancel()

	longer := "Jonathan"
	for _, name := range []*string{&longer, nil} {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.SetName(name)
	}
	return nil
}

// runListDemo follows the length of a live list and waits for it to reach
// three items.
func (a *App) runListDemo(ctx context.Context, obs *livexpr.Observer) error {
	items := notify.NewList("a", "b")
	param := expr.ParamOf[*notify.List[string]]("items")
	count := expr.Lambda(expr.Call(param, "Len"), param)

	t, err := livexpr.Observe1[*notify.List[string], int](obs, count, items)
	if err != nil {
		return err
	}
	defer t.Close()

	a.printf("item count: %s\n", t.Evaluation())
	cancel := t.Watch(func(_, ev livexpr.Evaluation) {
		a.printf("item count: %s\n", ev)
	})
	defer cancel()

	items.Add("c")
	full := expr.Lambda(expr.GreaterOrEqual(expr.Call(param, "Len"), expr.Const(3)), param)
	if err := obs.AwaitCondition(ctx, full, items); err != nil {
		return err
	}
	a.printf("item count reached 3\n")

	if err := items.RemoveAt(0); err != nil {
		return err
	}
	items.Clear()
	return nil
}
