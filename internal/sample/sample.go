// Package sample produces problem inputs: the reference scenario, random instances and
// problem files.
package sample

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"

	yaml "gopkg.in/yaml.v3"

	"factoryplan/internal/opt"
)

// Reference returns the fixed demonstration scenario.
func Reference() opt.Problem {
	return opt.Problem{
		Deadline: 8,
		Orders:   []int{5, 5, 1, 1, 1},
		Facilities: []opt.Facility{
			{ID: "1", UnitsPerDay: 1, CostPerUnit: 1, SetupCost: 7, SetupDays: 3},
			{ID: "2", UnitsPerDay: 1, CostPerUnit: 4, SetupCost: 1, SetupDays: 3},
			{ID: "3", UnitsPerDay: 6, CostPerUnit: 2, SetupCost: 5, SetupDays: 1},
		},
	}
}

// Generate returns a random instance with a deadline near the aggregate capacity estimate,
// so generated problems are neither trivially feasible nor hopeless.
func Generate(rng *rand.Rand) opt.Problem {
	orderCount := rng.Intn(6) + 3
	orders := make([]int, orderCount)
	totalUnits := 0
	for i := range orders {
		orders[i] = (rng.Intn(100) + 1) * 10
		totalUnits += orders[i]
	}

	facilityCount := rng.Intn(3) + 2
	facilities := make([]opt.Facility, facilityCount)
	totalDaily := 0
	for i := range facilities {
		facilities[i] = opt.Facility{
			ID:          strconv.Itoa(i + 1),
			UnitsPerDay: (rng.Intn(20) + 1) * 10,
			CostPerUnit: int64(rng.Intn(10) + 1),
			SetupCost:   int64((rng.Intn(50) + 5) * 10),
			SetupDays:   rng.Intn(5) + 1,
		}
		totalDaily += facilities[i].UnitsPerDay
	}

	roughDays := (totalUnits + totalDaily - 1) / totalDaily
	factor := 0.9 + rng.Float64()*0.6
	deadline := int(float64(roughDays)*factor) + 3

	return opt.Problem{Deadline: deadline, Orders: orders, Facilities: facilities}
}

// File is the on-disk problem format. JSON is valid YAML, so both are accepted.
type File struct {
	Deadline   int            `yaml:"deadline"`
	Orders     []int          `yaml:"orders"`
	Facilities []FileFacility `yaml:"facilities"`
}

// FileFacility is one facility entry of a File.
type FileFacility struct {
	ID          string `yaml:"id"`
	UnitsPerDay int    `yaml:"unitsPerDay"`
	CostPerUnit int64  `yaml:"costPerUnit"`
	SetupCost   int64  `yaml:"setupCost"`
	SetupDays   int    `yaml:"setupDays"`
}

// Parse decodes and validates a problem document.
func Parse(data []byte) (opt.Problem, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return opt.Problem{}, fmt.Errorf("parse problem: %w", err)
	}
	p := opt.Problem{Deadline: f.Deadline, Orders: f.Orders}
	for i, ff := range f.Facilities {
		id := ff.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		p.Facilities = append(p.Facilities, opt.Facility{
			ID:          id,
			UnitsPerDay: ff.UnitsPerDay,
			CostPerUnit: ff.CostPerUnit,
			SetupCost:   ff.SetupCost,
			SetupDays:   ff.SetupDays,
		})
	}
	if err := p.Validate(); err != nil {
		return opt.Problem{}, fmt.Errorf("parse problem: %w", err)
	}
	return p, nil
}

// LoadFile reads a problem file.
func LoadFile(path string) (opt.Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return opt.Problem{}, fmt.Errorf("load problem %q: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return opt.Problem{}, fmt.Errorf("load problem %q: %w", path, err)
	}
	return p, nil
}
