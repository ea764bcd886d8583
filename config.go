package qregsim

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Options is the resolved capability flag set a Device is constructed with.
// The fields mirror the device kwargs keys; see ParseOptions.
type Options struct {
	HybridStabilizer bool    // 'is_hybrid_stabilizer'
	TensorNetwork    bool    // 'is_tensor_network'
	SchmidtDecompose bool    // 'is_schmidt_decomposed'
	SchmidtParallel  bool    // 'is_schmidt_decomposition_parallel'
	QBDD             bool    // 'is_qbdd'
	GPU              bool    // 'is_gpu': parallel amplitude kernels
	Paged            bool    // 'is_paged'
	HybridCPUGPU     bool    // 'is_hybrid_cpu_gpu': parallel only past a size threshold
	HostPointer      bool    // 'is_host_pointer': accepted, no in-process effect
	Noise            float64 // 'noise': depolarizing trajectory strength

	// Seed fixes the sampling RNG; zero draws an arbitrary seed.
	Seed uint64

	// MaxAllocMB caps dense storage below what system memory would allow.
	// Zero consults available memory only.
	MaxAllocMB int

	// Logger receives session debug output. Nil gets a quiet default.
	Logger *log.Logger
}

func DefaultOptions() Options {
	return Options{
		HybridStabilizer: true,
		TensorNetwork:    true,
		SchmidtDecompose: true,
		SchmidtParallel:  true,
		GPU:              true,
	}
}

// ParseOptions resolves a device kwargs string into Options. The accepted
// form is a Python-style dict literal such as
//
//	{'is_tensor_network': False, 'noise': 0.25}
//
// which is also a YAML flow mapping, so it is decoded as YAML. Unknown keys
// and wrong-typed values are rejected.
func ParseOptions(kwargs string) (Options, error) {
	opts := DefaultOptions()
	kwargs = strings.TrimSpace(kwargs)
	if kwargs == "" || kwargs == "{}" {
		return opts, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(kwargs), &raw); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	for key, val := range raw {
		if key == "noise" {
			switch v := val.(type) {
			case float64:
				opts.Noise = v
			case int:
				opts.Noise = float64(v)
			default:
				return opts, fmt.Errorf("%w: 'noise' wants a number, got %T", ErrConfig, val)
			}
			continue
		}

		b, ok := val.(bool)
		if !ok {
			return opts, fmt.Errorf("%w: '%s' wants a bool, got %T", ErrConfig, key, val)
		}
		switch key {
		case "is_hybrid_stabilizer":
			opts.HybridStabilizer = b
		case "is_tensor_network":
			opts.TensorNetwork = b
		case "is_schmidt_decomposed":
			opts.SchmidtDecompose = b
		case "is_schmidt_decomposition_parallel":
			opts.SchmidtParallel = b
		case "is_qbdd":
			opts.QBDD = b
		case "is_gpu":
			opts.GPU = b
		case "is_paged":
			opts.Paged = b
		case "is_hybrid_cpu_gpu":
			opts.HybridCPUGPU = b
		case "is_host_pointer":
			opts.HostPointer = b
		default:
			return opts, fmt.Errorf("%w: unknown key '%s'", ErrConfig, key)
		}
	}
	return opts, nil
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel})
}
