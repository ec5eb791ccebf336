// Package reflectx resolves fields, getters, setters and methods by name and
// caches the lookups per type.
//
// Every call path recovers panics raised by reflection or by user code and
// returns them as errors, so callers can treat them as ordinary faults.
package reflectx

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/specialistvlad/livexpr/notify"
)

var (
	// ErrNilReference is returned when a member is read through a nil pointer
	// or nil interface.
	ErrNilReference = errors.New("nil reference")
	// ErrIndexOutOfRange is returned by Index for an index outside the value.
	ErrIndexOutOfRange = notify.ErrIndexOutOfRange
	// ErrNoSuchMember is returned when a type has no field or method of the
	// requested name.
	ErrNoSuchMember = errors.New("no such member")
	// ErrKeyNotFound is returned by Index for a missing map key.
	ErrKeyNotFound = notify.ErrKeyNotFound
)

var errorType = reflect.TypeFor[error]()

// MemberKind tells whether a Member reads a field or calls a getter.
type MemberKind int

const (
	Field MemberKind = iota
	Property
)

func (k MemberKind) String() string {
	if k == Field {
		return "field"
	}
	return "property"
}

// Member is a resolved readable member of Owner.
type Member struct {
	Owner reflect.Type
	Name  string
	Kind  MemberKind
	// Type is the value type produced by Get.
	Type reflect.Type

	index    []int
	method   reflect.Method
	hasError bool
}

type memberKey struct {
	t    reflect.Type
	name string
}

var (
	members sync.Map // memberKey -> *Member
	setters sync.Map // memberKey -> *Setter
	methods sync.Map // memberKey -> *Method
)

// LookupMember finds a field (through pointer indirections) or a
// zero-argument getter returning T or (T, error) on owner.
func LookupMember(owner reflect.Type, name string) (*Member, error) {
	key := memberKey{owner, name}
	if m, ok := members.Load(key); ok {
		return m.(*Member), nil
	}
	m, err := lookupMember(owner, name)
	if err != nil {
		return nil, err
	}
	actual, _ := members.LoadOrStore(key, m)
	return actual.(*Member), nil
}

func lookupMember(owner reflect.Type, name string) (*Member, error) {
	if owner == nil {
		return nil, fmt.Errorf("%w: %q on untyped value", ErrNoSuchMember, name)
	}
	if meth, ok := owner.MethodByName(name); ok && isGetter(owner, meth) {
		return &Member{
			Owner:    owner,
			Name:     name,
			Kind:     Property,
			Type:     meth.Type.Out(0),
			method:   meth,
			hasError: meth.Type.NumOut() == 2,
		}, nil
	}
	st := owner
	for st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() == reflect.Struct {
		if f, ok := st.FieldByName(name); ok && f.IsExported() {
			return &Member{Owner: owner, Name: name, Kind: Field, Type: f.Type, index: f.Index}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchMember, owner, name)
}

func isGetter(owner reflect.Type, m reflect.Method) bool {
	in := 1
	if owner.Kind() == reflect.Interface {
		in = 0
	}
	t := m.Type
	if t.NumIn() != in {
		return false
	}
	switch t.NumOut() {
	case 1:
		return true
	case 2:
		return t.Out(1) == errorType
	}
	return false
}

// Get reads the member from instance.
func (m *Member) Get(instance any) (out any, err error) {
	defer Recover(&err)
	v := reflect.ValueOf(instance)
	if !v.IsValid() || (isNilable(v) && v.IsNil()) {
		return nil, fmt.Errorf("%w: reading %s", ErrNilReference, m.Name)
	}
	if m.Kind == Field {
		f, err := fieldByIndex(v, m.index, m.Name)
		if err != nil {
			return nil, err
		}
		return f.Interface(), nil
	}
	var outs []reflect.Value
	if m.Owner.Kind() == reflect.Interface || v.Type() != m.Owner {
		fn := v.MethodByName(m.Name)
		if !fn.IsValid() {
			return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchMember, v.Type(), m.Name)
		}
		outs = fn.Call(nil)
	} else {
		outs = m.method.Func.Call([]reflect.Value{v})
	}
	if m.hasError && !outs[1].IsNil() {
		return nil, outs[1].Interface().(error)
	}
	return outs[0].Interface(), nil
}

// Getter returns the method backing a property member.
func (m *Member) Getter() (reflect.Method, bool) {
	return m.method, m.Kind == Property
}

func fieldByIndex(v reflect.Value, index []int, name string) (reflect.Value, error) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: reading %s", ErrNilReference, name)
		}
		v = v.Elem()
	}
	for i, x := range index {
		if i > 0 {
			for v.Kind() == reflect.Pointer {
				if v.IsNil() {
					return reflect.Value{}, fmt.Errorf("%w: reading %s", ErrNilReference, name)
				}
				v = v.Elem()
			}
		}
		v = v.Field(x)
	}
	return v, nil
}

// Setter assigns a member on an existing instance: a settable field reached
// through a pointer, or a SetX(v) method.
type Setter struct {
	Owner reflect.Type
	Name  string
	Type  reflect.Type

	index  []int
	method reflect.Method
	isFunc bool
}

// LookupSetter resolves name on owner for assignment. owner is expected to be
// a pointer type for field setters.
func LookupSetter(owner reflect.Type, name string) (*Setter, error) {
	key := memberKey{owner, name}
	if s, ok := setters.Load(key); ok {
		return s.(*Setter), nil
	}
	s, err := lookupSetter(owner, name)
	if err != nil {
		return nil, err
	}
	actual, _ := setters.LoadOrStore(key, s)
	return actual.(*Setter), nil
}

func lookupSetter(owner reflect.Type, name string) (*Setter, error) {
	if owner == nil {
		return nil, fmt.Errorf("%w: %q on untyped value", ErrNoSuchMember, name)
	}
	if owner.Kind() == reflect.Pointer && owner.Elem().Kind() == reflect.Struct {
		if f, ok := owner.Elem().FieldByName(name); ok && f.IsExported() {
			return &Setter{Owner: owner, Name: name, Type: f.Type, index: f.Index}, nil
		}
	}
	if meth, ok := owner.MethodByName("Set" + name); ok {
		t := meth.Type
		if t.NumIn() == 2 && (t.NumOut() == 0 || (t.NumOut() == 1 && t.Out(0) == errorType)) {
			return &Setter{Owner: owner, Name: name, Type: t.In(1), method: meth, isFunc: true}, nil
		}
	}
	return nil, fmt.Errorf("%w: settable %s.%s", ErrNoSuchMember, owner, name)
}

// Set assigns value on instance.
func (s *Setter) Set(instance, value any) (err error) {
	defer Recover(&err)
	v := reflect.ValueOf(instance)
	if !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return fmt.Errorf("%w: assigning %s", ErrNilReference, s.Name)
	}
	arg := ValueOf(value, s.Type)
	if s.isFunc {
		outs := s.method.Func.Call([]reflect.Value{v, arg})
		if len(outs) == 1 && !outs[0].IsNil() {
			return outs[0].Interface().(error)
		}
		return nil
	}
	f, err := fieldByIndex(v, s.index, s.Name)
	if err != nil {
		return err
	}
	f.Set(arg)
	return nil
}

// Method is a resolved method of a receiver type.
type Method struct {
	Receiver reflect.Type
	Name     string
	// Type is the method signature without the receiver.
	Type reflect.Type

	method reflect.Method
}

// LookupMethod resolves a method by name on recv.
func LookupMethod(recv reflect.Type, name string) (*Method, error) {
	key := memberKey{recv, name}
	if m, ok := methods.Load(key); ok {
		return m.(*Method), nil
	}
	if recv == nil {
		return nil, fmt.Errorf("%w: %q on untyped value", ErrNoSuchMember, name)
	}
	meth, ok := recv.MethodByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: method %s.%s", ErrNoSuchMember, recv, name)
	}
	sig := meth.Type
	if recv.Kind() != reflect.Interface {
		in := make([]reflect.Type, 0, sig.NumIn()-1)
		for i := 1; i < sig.NumIn(); i++ {
			in = append(in, sig.In(i))
		}
		out := make([]reflect.Type, 0, sig.NumOut())
		for i := range sig.NumOut() {
			out = append(out, sig.Out(i))
		}
		sig = reflect.FuncOf(in, out, meth.Type.IsVariadic())
	}
	m := &Method{Receiver: recv, Name: name, Type: sig, method: meth}
	actual, _ := methods.LoadOrStore(key, m)
	return actual.(*Method), nil
}

// Call invokes the method on instance.
func (m *Method) Call(instance any, args []any) (out any, err error) {
	defer Recover(&err)
	v := reflect.ValueOf(instance)
	if !v.IsValid() || (isNilable(v) && v.IsNil() && v.Kind() != reflect.Pointer) {
		return nil, fmt.Errorf("%w: calling %s", ErrNilReference, m.Name)
	}
	fn := v.MethodByName(m.Name)
	if !fn.IsValid() {
		return nil, fmt.Errorf("%w: method %s.%s", ErrNoSuchMember, v.Type(), m.Name)
	}
	return call(fn, args)
}

// ResultType is the first result of a method or func signature, or nil.
func ResultType(sig reflect.Type) reflect.Type {
	if sig == nil || sig.NumOut() == 0 {
		return nil
	}
	return sig.Out(0)
}

// CallFunc invokes fn, a func value, with args. A trailing error result is
// returned as err.
func CallFunc(fn any, args []any) (out any, err error) {
	defer Recover(&err)
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: calling nil func", ErrNilReference)
	}
	return call(v, args)
}

func call(fn reflect.Value, args []any) (any, error) {
	t := fn.Type()
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		switch {
		case t.IsVariadic() && i >= t.NumIn()-1:
			pt = t.In(t.NumIn() - 1).Elem()
		case i < t.NumIn():
			pt = t.In(i)
		default:
			return nil, fmt.Errorf("too many arguments: have %d, want %d", len(args), t.NumIn())
		}
		in[i] = ValueOf(a, pt)
	}
	outs := fn.Call(in)
	switch len(outs) {
	case 0:
		return nil, nil
	case 1:
		if t.Out(0) == errorType {
			if outs[0].IsNil() {
				return nil, nil
			}
			return nil, outs[0].Interface().(error)
		}
		return outs[0].Interface(), nil
	}
	if last := outs[len(outs)-1]; t.Out(len(outs)-1) == errorType && !last.IsNil() {
		return nil, last.Interface().(error)
	}
	return outs[0].Interface(), nil
}

// ValueOf converts a to a reflect.Value assignable to t. A nil a yields the
// zero value of t.
func ValueOf(a any, t reflect.Type) reflect.Value {
	if a == nil {
		return reflect.Zero(t)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		if t.Kind() == reflect.Interface && v.Type() != t {
			out := reflect.New(t).Elem()
			out.Set(v)
			return out
		}
		return v
	}
	if v.Type().ConvertibleTo(t) {
		return v.Convert(t)
	}
	return v
}

// Index reads v[key] for slices, arrays, strings and maps.
func Index(v, key any) (out any, err error) {
	defer Recover(&err)
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: indexing", ErrNilReference)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		i, ok := toInt(key)
		if !ok {
			return nil, fmt.Errorf("non-integer index %v of type %T", key, key)
		}
		if i < 0 || i >= rv.Len() {
			return nil, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, rv.Len())
		}
		return rv.Index(i).Interface(), nil
	case reflect.Map:
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
		}
		k := ValueOf(key, rv.Type().Key())
		e := rv.MapIndex(k)
		if !e.IsValid() {
			return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
		}
		return e.Interface(), nil
	case reflect.Invalid:
		return nil, fmt.Errorf("%w: indexing", ErrNilReference)
	}
	return nil, fmt.Errorf("%s is not indexable", rv.Type())
}

func toInt(key any) (int, bool) {
	v := reflect.ValueOf(key)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(v.Uint()), true
	}
	return 0, false
}

// ToInt reports key as an int when it holds an integer kind.
func ToInt(key any) (int, bool) { return toInt(key) }

func isNilable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// IsNil reports whether a is nil or a nil reference value.
func IsNil(a any) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	return isNilable(v) && v.IsNil()
}

func isNilDeref(e error) bool {
	const s = "invalid memory address or nil pointer dereference"
	msg := e.Error()
	return len(msg) >= len(s) && msg[len(msg)-len(s):] == s
}

// Recover converts a panic into *err. Use as `defer reflectx.Recover(&err)`.
func Recover(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			if isNilDeref(e) {
				*err = fmt.Errorf("%w: %v", ErrNilReference, e)
				return
			}
			*err = fmt.Errorf("panic: %w", e)
			return
		}
		*err = fmt.Errorf("panic: %v", r)
	}
}
