package dataset

import (
	"banksim/internal/models"
	"math/rand"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default bounds of a generated delay, in base units.
const (
	DefaultMinDelay = 1
	DefaultMaxDelay = 5
)

// Dataset is the timing input of a run: one arrival delay and one service
// delay per expected customer.
type Dataset struct {
	Seed          int64 `yaml:"seed"`
	MinDelay      int   `yaml:"min_delay"`
	MaxDelay      int   `yaml:"max_delay"`
	ArrivalDelays []int `yaml:"arrival_delays"`
	ServiceDelays []int `yaml:"service_delays"`
}

// Generate draws n arrival delays, then n service delays, uniformly from
// [minDelay, maxDelay]. The same seed always yields the same dataset.
func Generate(n, minDelay, maxDelay int, seed int64) (*Dataset, error) {
	if n <= 0 || n > models.MaxCustomers {
		return nil, errors.Errorf("generate dataset: size must be between 1 and %d, got %d", models.MaxCustomers, n)
	}
	if minDelay < 0 || maxDelay < minDelay {
		return nil, errors.Errorf("generate dataset: invalid delay bounds [%d, %d]", minDelay, maxDelay)
	}

	rng := rand.New(rand.NewSource(seed))
	draw := func() []int {
		out := make([]int, n)
		for i := range out {
			out[i] = minDelay + rng.Intn(maxDelay-minDelay+1)
		}
		return out
	}

	return &Dataset{
		Seed:          seed,
		MinDelay:      minDelay,
		MaxDelay:      maxDelay,
		ArrivalDelays: draw(),
		ServiceDelays: draw(),
	}, nil
}

// Len is the number of customers the dataset can pace.
func (d *Dataset) Len() int {
	return min(len(d.ArrivalDelays), len(d.ServiceDelays))
}

// Load reads a dataset from a YAML file.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load dataset %q", path)
	}

	var d Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrapf(err, "parse dataset %q", path)
	}
	if len(d.ArrivalDelays) == 0 || len(d.ServiceDelays) == 0 {
		return nil, errors.Errorf("dataset %q: arrival_delays and service_delays are required", path)
	}
	return &d, nil
}

// Save writes the dataset as YAML.
func (d *Dataset) Save(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "marshal dataset")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write dataset %q", path)
	}
	return nil
}
