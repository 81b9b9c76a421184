package nn

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/born-ml/gradcam/internal/tensor"
)

// ErrUnknownLayer is returned by Attach for a name that is not in the container.
var ErrUnknownLayer = errors.New("unknown layer")

// Sequential is a container module that chains named modules together.
//
// Each module's output becomes the next module's input. Observers can be
// attached to any named entry; nested containers are addressed with dotted
// names such as "stage3.pool".
//
// Example:
//
//	stage := nn.NewSequential(backend)
//	stage.Add("conv", nn.NewConv2D(w, b, 1, 1, backend))
//	stage.Add("relu", nn.NewReLU(backend))
//	stage.Add("pool", nn.NewMaxPool2D(2, 2, backend))
//
// A Sequential is not safe for concurrent use.
type Sequential[B tensor.Backend] struct {
	names     []string
	modules   []Module[B]
	observers map[string][]*attachment
	backend   B
}

type attachment struct {
	observer LayerObserver
}

// NewSequential creates an empty Sequential container.
func NewSequential[B tensor.Backend](backend B) *Sequential[B] {
	return &Sequential[B]{
		observers: make(map[string][]*attachment),
		backend:   backend,
	}
}

// Add appends a named module to the sequence.
//
// Panics if name is empty, contains a dot or is already taken.
func (s *Sequential[B]) Add(name string, module Module[B]) {
	if name == "" || strings.Contains(name, ".") {
		panic(fmt.Sprintf("Sequential.Add: invalid layer name %q", name))
	}
	if slices.Contains(s.names, name) {
		panic(fmt.Sprintf("Sequential.Add: duplicate layer name %q", name))
	}
	s.names = append(s.names, name)
	s.modules = append(s.modules, module)
}

// Forward applies all modules in sequence, notifying attached observers
// after each named module produces its output.
func (s *Sequential[B]) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	output := input
	for i, module := range s.modules {
		output = module.Forward(output)
		s.notify(s.names[i], output)
	}
	return output
}

func (s *Sequential[B]) notify(name string, output *tensor.RawTensor) {
	attached := s.observers[name]
	if len(attached) == 0 {
		return
	}
	watcher, canWatch := any(s.backend).(GradientWatcher)
	for _, a := range attached {
		a.observer.OnForward(name, output)
		if canWatch {
			obs := a.observer
			watcher.WatchGradient(output, func(grad *tensor.RawTensor) {
				obs.OnBackward(name, grad)
			})
		}
	}
}

// Attach registers obs on the named layer. The returned function detaches
// it again and may be called more than once.
//
// Returns ErrUnknownLayer if no layer has that name.
func (s *Sequential[B]) Attach(name string, obs LayerObserver) (detach func(), err error) {
	head, rest, nested := strings.Cut(name, ".")
	idx := slices.Index(s.names, head)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}

	if nested {
		child, ok := s.modules[idx].(*Sequential[B])
		if !ok {
			return nil, fmt.Errorf("%w: %q (%q is not a container)", ErrUnknownLayer, name, head)
		}
		return child.Attach(rest, obs)
	}

	a := &attachment{observer: obs}
	s.observers[head] = append(s.observers[head], a)
	return func() {
		s.observers[head] = slices.DeleteFunc(s.observers[head], func(x *attachment) bool {
			return x == a
		})
	}, nil
}

// Parameters returns all parameters from all modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter {
	var params []*Parameter
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Names returns the layer names in order.
func (s *Sequential[B]) Names() []string {
	return slices.Clone(s.names)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module with the given name, or nil.
func (s *Sequential[B]) Module(name string) Module[B] {
	if idx := slices.Index(s.names, name); idx >= 0 {
		return s.modules[idx]
	}
	return nil
}
