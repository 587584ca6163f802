package agent

import (
	"context"
	"errors"

	"github.com/yourapi/plesk-sitekick/pkg/entity"
)

type brokenProvider struct{}

func (brokenProvider) Name() string                             { return "broken" }
func (brokenProvider) Applicable(context.Context) (bool, error) { return true, nil }
func (brokenProvider) ListEntities(context.Context) ([]string, error) {
	return nil, errors.New("api unreachable")
}
func (brokenProvider) EntityDetail(context.Context, string) (entity.Record, error) {
	return nil, errors.New("unreachable")
}
