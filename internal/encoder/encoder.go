package encoder

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-multierror"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"

	"github.com/born-ml/mtl/internal/nn"
)

// Encoder composes an embedder and an extractor.
type Encoder struct {
	scope     string
	embedder  Embedder
	extractor Extractor
	sets      []*nn.ParamSet
}

// Scope returns the name of the encoder's own parameter scope.
func (e *Encoder) Scope() string {
	return e.scope
}

// Embedder returns the embedding stage.
func (e *Encoder) Embedder() Embedder {
	return e.embedder
}

// Extractor returns the extraction stage.
func (e *Encoder) Extractor() Extractor {
	return e.extractor
}

// Encode maps a batch to a [batch, OutputDim] matrix.
func (e *Encoder) Encode(in Input, training bool) (*mat.Dense, error) {
	seqs, err := e.embedder.Embed(in)
	if err != nil {
		return nil, fmt.Errorf("%s: embed: %w", e.scope, err)
	}
	out, err := e.extractor.Extract(seqs, in.Lengths, training)
	if err != nil {
		return nil, fmt.Errorf("%s: extract: %w", e.scope, err)
	}
	return out, nil
}

// OutputDim returns the width of Encode's result.
func (e *Encoder) OutputDim() int {
	return e.extractor.OutputDim(e.embedder.OutputDim())
}

// ParamSets returns the parameter sets the encoder reads from. Sets shared
// with other encoders are the same pointers.
func (e *Encoder) ParamSets() []*nn.ParamSet {
	out := make([]*nn.ParamSet, len(e.sets))
	copy(out, e.sets)
	return out
}

// Parameters returns every parameter of both stages.
func (e *Encoder) Parameters() []*nn.Parameter {
	return append(e.embedder.Parameters(), e.extractor.Parameters()...)
}

type resolved struct {
	embed   EmbedderFactory
	extract ExtractorFactory
	arch    DatasetArch
}

// Validate checks that every dataset is configured, every function name
// resolves and that tied stages use one function with one set of kwargs.
// All problems are reported together.
func Validate(reg *Registry, arch *Architecture, datasets []string) error {
	_, err := resolve(reg, arch, datasets)
	return err
}

func resolve(reg *Registry, arch *Architecture, datasets []string) (map[string]resolved, error) {
	var errs *multierror.Error
	if len(datasets) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("architecture %s: no datasets requested", arch.Name))
	}

	out := make(map[string]resolved, len(datasets))
	var first *DatasetArch
	var firstName string
	for _, ds := range datasets {
		da, ok := arch.Datasets[ds]
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("architecture %s: dataset %s not configured", arch.Name, ds))
			continue
		}

		embed, err := reg.Embedder(da.EmbedFn)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("dataset %s: %w", ds, err))
		}
		extract, err := reg.Extractor(da.ExtractFn)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("dataset %s: %w", ds, err))
		}
		out[ds] = resolved{embed: embed, extract: extract, arch: da}

		if first == nil {
			first, firstName = &da, ds
			continue
		}
		if arch.EmbeddersTied && (da.EmbedFn != first.EmbedFn || !reflect.DeepEqual(da.EmbedKwargs, first.EmbedKwargs)) {
			errs = multierror.Append(errs, fmt.Errorf("architecture %s: embedders are tied but %s and %s configure different embedders",
				arch.Name, firstName, ds))
		}
		if arch.ExtractorsTied && (da.ExtractFn != first.ExtractFn || !reflect.DeepEqual(da.ExtractKwargs, first.ExtractKwargs)) {
			errs = multierror.Append(errs, fmt.Errorf("architecture %s: extractors are tied but %s and %s configure different extractors",
				arch.Name, firstName, ds))
		}
	}
	return out, errs.ErrorOrNil()
}

// Build constructs one encoder per dataset.
//
// With both stages tied every dataset maps to the same *Encoder. Otherwise
// each dataset gets its own *Encoder; a tied stage is constructed once and
// shared by all of them, an untied stage is constructed per dataset in the
// scope "encoder_<dataset>".
func Build(reg *Registry, arch *Architecture, datasets []string, env Env) (map[string]*Encoder, error) {
	if !ValidInputKey(env.InputKey) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInputKey, env.InputKey)
	}
	res, err := resolve(reg, arch, datasets)
	if err != nil {
		return nil, fmt.Errorf("architecture %s: %w", arch.Name, err)
	}

	encoders := make(map[string]*Encoder, len(datasets))
	first := res[datasets[0]]

	if arch.FullyShared() {
		ps := nn.NewParamSet("encoder_shared", env.Seed)
		enc, err := compose(ps.Scope(), first, env, ps, ps)
		if err != nil {
			return nil, err
		}
		for _, ds := range datasets {
			encoders[ds] = enc
		}
		klog.V(1).Infof("encoder %s shared by %d datasets, output dim %d", enc.scope, len(datasets), enc.OutputDim())
		return encoders, nil
	}

	var sharedEmbed Embedder
	var embedSet *nn.ParamSet
	if arch.EmbeddersTied {
		embedSet = nn.NewParamSet("embedder_shared", env.Seed)
		if sharedEmbed, err = first.embed(embedSet, env, first.arch.EmbedKwargs); err != nil {
			return nil, fmt.Errorf("embedder_shared: %w", err)
		}
	}

	owned := make(map[string]*nn.ParamSet, len(datasets))
	for _, ds := range datasets {
		r := res[ds]
		scope := "encoder_" + ds
		own := nn.NewParamSet(scope, env.Seed)
		owned[ds] = own

		enc := &Encoder{scope: scope, embedder: sharedEmbed}
		if sharedEmbed == nil {
			if enc.embedder, err = r.embed(own, env, r.arch.EmbedKwargs); err != nil {
				return nil, fmt.Errorf("%s: %w", scope, err)
			}
		} else {
			enc.sets = append(enc.sets, embedSet)
		}
		encoders[ds] = enc
	}

	var sharedExtract Extractor
	var extractSet *nn.ParamSet
	if arch.ExtractorsTied {
		inDim := encoders[datasets[0]].embedder.OutputDim()
		for _, ds := range datasets[1:] {
			if dim := encoders[ds].embedder.OutputDim(); dim != inDim {
				return nil, fmt.Errorf("architecture %s: extractors are tied but embedder widths differ (%s: %d, %s: %d)",
					arch.Name, datasets[0], inDim, ds, dim)
			}
		}
		extractSet = nn.NewParamSet("extractor_shared", env.Seed)
		if sharedExtract, err = first.extract(extractSet, inDim, first.arch.ExtractKwargs); err != nil {
			return nil, fmt.Errorf("extractor_shared: %w", err)
		}
	}

	for _, ds := range datasets {
		r, enc := res[ds], encoders[ds]
		if sharedExtract == nil {
			if enc.extractor, err = r.extract(owned[ds], enc.embedder.OutputDim(), r.arch.ExtractKwargs); err != nil {
				return nil, fmt.Errorf("%s: %w", enc.scope, err)
			}
		} else {
			enc.extractor = sharedExtract
			enc.sets = append(enc.sets, extractSet)
		}
		enc.sets = append(enc.sets, owned[ds])

		klog.V(1).Infof("encoder %s: embedder tied=%t extractor tied=%t, output dim %d",
			enc.scope, arch.EmbeddersTied, arch.ExtractorsTied, enc.OutputDim())
	}
	return encoders, nil
}

func compose(scope string, r resolved, env Env, embedSet, extractSet *nn.ParamSet) (*Encoder, error) {
	embed, err := r.embed(embedSet, env, r.arch.EmbedKwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scope, err)
	}
	extract, err := r.extract(extractSet, embed.OutputDim(), r.arch.ExtractKwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scope, err)
	}
	return &Encoder{scope: scope, embedder: embed, extractor: extract, sets: []*nn.ParamSet{embedSet}}, nil
}
