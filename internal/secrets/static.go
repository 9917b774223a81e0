package secrets

import (
	"context"

	"cliniq/internal/util"
)

// StaticProvider serves secrets from an in-memory map. Development and test
// use only.
type StaticProvider struct {
	values map[string]Credentials
}

func NewStaticProvider(values map[string]Credentials) *StaticProvider {
	if values == nil {
		values = make(map[string]Credentials)
	}
	return &StaticProvider{values: values}
}

func (p *StaticProvider) Get(ctx context.Context, name string) (util.Optional[Credentials], error) {
	creds, ok := p.values[name]
	if !ok {
		return util.None[Credentials](), nil
	}
	return util.Some(creds), nil
}
