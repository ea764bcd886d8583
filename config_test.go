package qregsim

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseOptionsDefaults(t *testing.T) {
	for _, kwargs := range []string{"", "{}", "  "} {
		opts, err := ParseOptions(kwargs)
		if err != nil {
			t.Fatalf("ParseOptions(%q): %v", kwargs, err)
		}
		if !opts.HybridStabilizer || !opts.TensorNetwork || !opts.SchmidtDecompose ||
			!opts.SchmidtParallel || !opts.GPU {
			t.Errorf("ParseOptions(%q) lost a default flag: %+v", kwargs, opts)
		}
		if opts.QBDD || opts.Paged || opts.HybridCPUGPU || opts.HostPointer {
			t.Errorf("ParseOptions(%q) turned on an off-by-default flag: %+v", kwargs, opts)
		}
		if opts.Noise != 0 {
			t.Errorf("ParseOptions(%q) noise = %g", kwargs, opts.Noise)
		}
	}
}

func TestParseOptionsKeys(t *testing.T) {
	kwargs := "{'is_hybrid_stabilizer': False, 'is_tensor_network': False, " +
		"'is_schmidt_decomposed': False, 'is_schmidt_decomposition_parallel': False, " +
		"'is_qbdd': True, 'is_gpu': False, 'is_paged': True, " +
		"'is_hybrid_cpu_gpu': True, 'is_host_pointer': True}"
	opts, err := ParseOptions(kwargs)
	if err != nil {
		t.Fatal(err)
	}
	if opts.HybridStabilizer || opts.TensorNetwork || opts.SchmidtDecompose ||
		opts.SchmidtParallel || opts.GPU {
		t.Errorf("flags not cleared: %+v", opts)
	}
	if !opts.QBDD || !opts.Paged || !opts.HybridCPUGPU || !opts.HostPointer {
		t.Errorf("flags not set: %+v", opts)
	}
}

func TestParseOptionsNoise(t *testing.T) {
	opts, err := ParseOptions("{'noise': 0.25}")
	if err != nil || opts.Noise != 0.25 {
		t.Errorf("float noise: %g, %v", opts.Noise, err)
	}
	opts, err = ParseOptions("{'noise': 1}")
	if err != nil || opts.Noise != 1 {
		t.Errorf("integer noise: %g, %v", opts.Noise, err)
	}
	if _, err := ParseOptions("{'noise': 'loud'}"); !errors.Is(err, ErrConfig) {
		t.Errorf("string noise gave %v", err)
	}
}

func TestParseOptionsErrors(t *testing.T) {
	if _, err := ParseOptions("{'is_fast': True}"); !errors.Is(err, ErrConfig) {
		t.Errorf("unknown key gave %v", err)
	}
	if _, err := ParseOptions("{'is_gpu': 3}"); !errors.Is(err, ErrConfig) {
		t.Errorf("numeric bool gave %v", err)
	}
	if _, err := ParseOptions("{'is_gpu'"); !errors.Is(err, ErrConfig) {
		t.Errorf("malformed dict gave %v", err)
	}
}

func TestOptionsLogger(t *testing.T) {
	var opts Options
	if opts.logger() == nil {
		t.Fatal("nil fallback logger")
	}
	custom := log.New(io.Discard)
	opts.Logger = custom
	if opts.logger() != custom {
		t.Error("custom logger not passed through")
	}
}
