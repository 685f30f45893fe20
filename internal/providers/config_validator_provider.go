package providers

import (
	"errors"
	"fmt"
	"jobstreak/internal/structures"
	"time"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	v.StopOnError = false
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.String())
	}

	if cv.conf.Remote.Driver == "postgres" && cv.conf.Remote.DSN == "" {
		return errors.New("invalid config: remote.dsn is required for the postgres driver")
	}
	if cv.conf.Sync.Timezone != "" {
		if _, err := time.LoadLocation(cv.conf.Sync.Timezone); err != nil {
			return fmt.Errorf("invalid config: sync.timezone: %w", err)
		}
	}
	return nil
}
