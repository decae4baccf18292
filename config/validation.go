package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sarchlab/ftlsim/ftl"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	mustRegister(v, "scheme", func(fl validator.FieldLevel) bool {
		_, err := ftl.ParseScheme(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "victim_policy", func(fl validator.FieldLevel) bool {
		_, err := ftl.ParseVictimPolicy(fl.Field().String())
		return err == nil
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering validation %q: %v", tag, err))
	}
}

// Validate checks the field constraints and the relations between sections.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return describe(verrs)
		}

		return err
	}

	g := cfg.NANDGeometry()
	if err := g.Validate(); err != nil {
		return fmt.Errorf("geometry: %w", err)
	}

	var errs []error

	if cfg.FTL.BMStartSector > g.TotalSectors() {
		errs = append(errs, fmt.Errorf(
			"ftl.bm_start_sector %d is beyond the last sector %d",
			cfg.FTL.BMStartSector, g.TotalSectors()))
	}

	if cfg.Workload.FootprintSectors > g.TotalSectors() {
		errs = append(errs, fmt.Errorf(
			"workload.footprint_sectors %d is beyond the device size %d",
			cfg.Workload.FootprintSectors, g.TotalSectors()))
	}

	if cfg.Workload.ReadRatio+cfg.Workload.DiscardRatio > 1 {
		errs = append(errs, fmt.Errorf(
			"workload.read_ratio + workload.discard_ratio is %.2f, more than 1",
			cfg.Workload.ReadRatio+cfg.Workload.DiscardRatio))
	}

	return errors.Join(errs...)
}

func describe(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")

		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s fails %s=%s (got %v)",
				field, fe.Tag(), fe.Param(), fe.Value()))
			continue
		}

		msgs = append(msgs, fmt.Sprintf("%s fails %s (got %v)",
			field, fe.Tag(), fe.Value()))
	}

	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
