// Package pipeline enumerates the classification pipeline variants the
// evaluator compares. The set is closed and ordered: variants are declared
// once, by name, each bound to a fixed feature-extraction and classifier
// chain, so result tables iterate deterministically run after run.
package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/neuroforge/erpbench/internal/classify"
	"github.com/neuroforge/erpbench/internal/epoch"
	"github.com/neuroforge/erpbench/internal/features"
	"github.com/neuroforge/erpbench/internal/sigproc"
)

// #region interface

// Pipeline is one fit/score-able variant. Fit mutates only the variant's
// own parameters; Score returns AUC on held-out epochs, in [0, 1].
type Pipeline interface {
	Name() string
	Fit(train []epoch.Epoch, labels []int) error
	Score(test []epoch.Epoch, labels []int) (float64, error)
}

// Variant names a pipeline and builds fresh instances of it, so every
// evaluation cell fits its own copy with no shared mutable state.
type Variant struct {
	Name string
	New  func() Pipeline
}

// #endregion interface

// #region registry

// Names is the closed variant set in declared order.
var Names = []string{
	"vect-lr",
	"vect-rlda",
	"erpcov-mdm",
	"erpcov-ts-lr",
	"csp-rlda",
}

// New builds a fresh instance of the named variant.
func New(name string) (Pipeline, error) {
	switch name {
	case "vect-lr":
		return &vectPipeline{name: name, clf: &classify.LogReg{}}, nil
	case "vect-rlda":
		return &vectPipeline{name: name, clf: &classify.LDA{}}, nil
	case "erpcov-mdm":
		return &covMDMPipeline{name: name, cov: features.ERPCov{Shrink: -1}}, nil
	case "erpcov-ts-lr":
		return &covTSPipeline{name: name, cov: features.ERPCov{Shrink: -1}, clf: &classify.LogReg{}}, nil
	case "csp-rlda":
		return &cspPipeline{name: name, csp: features.CSP{Components: 4, Shrink: -1}, clf: &classify.LDA{}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown pipeline variant %q", sigproc.ErrInvalidParameter, name)
	}
}

// Variants resolves names into ordered variant factories. An empty list
// selects the full closed set.
func Variants(names []string) ([]Variant, error) {
	if len(names) == 0 {
		names = Names
	}
	out := make([]Variant, 0, len(names))
	for _, n := range names {
		name := n
		if _, err := New(name); err != nil {
			return nil, err
		}
		out = append(out, Variant{Name: name, New: func() Pipeline {
			p, _ := New(name)
			return p
		}})
	}
	return out, nil
}

// #endregion registry

// #region linear-classifier

// linearClassifier is the shared contract of the vector-input classifiers.
type linearClassifier interface {
	Fit(X [][]float64, y []int) error
	Decision(x []float64) (float64, error)
	Classes() (neg, pos int)
}

// #endregion linear-classifier

// #region vect-pipeline

// vectPipeline: standardize-vectorize, then a linear classifier.
type vectPipeline struct {
	name string
	vec  features.Vectorizer
	clf  linearClassifier
}

func (p *vectPipeline) Name() string { return p.name }

func (p *vectPipeline) Fit(train []epoch.Epoch, labels []int) error {
	if err := p.vec.Fit(train, labels); err != nil {
		return err
	}
	X, err := vectorizeAll(&p.vec, train)
	if err != nil {
		return err
	}
	return p.clf.Fit(X, labels)
}

func (p *vectPipeline) Score(test []epoch.Epoch, labels []int) (float64, error) {
	X, err := vectorizeAll(&p.vec, test)
	if err != nil {
		return 0, err
	}
	scores := make([]float64, len(X))
	for i, x := range X {
		s, err := p.clf.Decision(x)
		if err != nil {
			return 0, err
		}
		scores[i] = s
	}
	_, pos := p.clf.Classes()
	return classify.AUC(labels, scores, pos)
}

func vectorizeAll(v *features.Vectorizer, epochs []epoch.Epoch) ([][]float64, error) {
	X := make([][]float64, len(epochs))
	for i, e := range epochs {
		x, err := v.Transform(e)
		if err != nil {
			return nil, err
		}
		X[i] = x
	}
	return X, nil
}

// #endregion vect-pipeline

// #region cov-mdm-pipeline

// covMDMPipeline: ERP covariance, then minimum distance to mean.
type covMDMPipeline struct {
	name string
	cov  features.ERPCov
	mdm  classify.MDM
}

func (p *covMDMPipeline) Name() string { return p.name }

func (p *covMDMPipeline) Fit(train []epoch.Epoch, labels []int) error {
	if err := p.cov.Fit(train, labels); err != nil {
		return err
	}
	covs, err := covAll(&p.cov, train)
	if err != nil {
		return err
	}
	return p.mdm.Fit(covs, labels)
}

func (p *covMDMPipeline) Score(test []epoch.Epoch, labels []int) (float64, error) {
	covs, err := covAll(&p.cov, test)
	if err != nil {
		return 0, err
	}
	scores := make([]float64, len(covs))
	for i, c := range covs {
		s, err := p.mdm.Decision(c)
		if err != nil {
			return 0, err
		}
		scores[i] = s
	}
	_, pos := p.mdm.Classes()
	return classify.AUC(labels, scores, pos)
}

func covAll(c *features.ERPCov, epochs []epoch.Epoch) ([]*mat.SymDense, error) {
	covs := make([]*mat.SymDense, len(epochs))
	for i, e := range epochs {
		cov, err := c.Transform(e)
		if err != nil {
			return nil, err
		}
		covs[i] = cov
	}
	return covs, nil
}

// #endregion cov-mdm-pipeline

// #region cov-ts-pipeline

// covTSPipeline: ERP covariance, tangent-space mapping, linear classifier.
type covTSPipeline struct {
	name string
	cov  features.ERPCov
	ts   features.TangentSpace
	clf  linearClassifier
}

func (p *covTSPipeline) Name() string { return p.name }

func (p *covTSPipeline) Fit(train []epoch.Epoch, labels []int) error {
	if err := p.cov.Fit(train, labels); err != nil {
		return err
	}
	covs, err := covAll(&p.cov, train)
	if err != nil {
		return err
	}
	if err := p.ts.Fit(covs); err != nil {
		return err
	}
	X := make([][]float64, len(covs))
	for i, c := range covs {
		x, err := p.ts.Transform(c)
		if err != nil {
			return err
		}
		X[i] = x
	}
	return p.clf.Fit(X, labels)
}

func (p *covTSPipeline) Score(test []epoch.Epoch, labels []int) (float64, error) {
	covs, err := covAll(&p.cov, test)
	if err != nil {
		return 0, err
	}
	scores := make([]float64, len(covs))
	for i, c := range covs {
		x, err := p.ts.Transform(c)
		if err != nil {
			return 0, err
		}
		s, err := p.clf.Decision(x)
		if err != nil {
			return 0, err
		}
		scores[i] = s
	}
	_, pos := p.clf.Classes()
	return classify.AUC(labels, scores, pos)
}

// #endregion cov-ts-pipeline

// #region csp-pipeline

// cspPipeline: CSP spatial filtering to log-variance features, then LDA.
type cspPipeline struct {
	name string
	csp  features.CSP
	clf  linearClassifier
}

func (p *cspPipeline) Name() string { return p.name }

func (p *cspPipeline) Fit(train []epoch.Epoch, labels []int) error {
	if err := p.csp.Fit(train, labels); err != nil {
		return err
	}
	X := make([][]float64, len(train))
	for i, e := range train {
		x, err := p.csp.Transform(e)
		if err != nil {
			return err
		}
		X[i] = x
	}
	return p.clf.Fit(X, labels)
}

func (p *cspPipeline) Score(test []epoch.Epoch, labels []int) (float64, error) {
	scores := make([]float64, len(test))
	for i, e := range test {
		x, err := p.csp.Transform(e)
		if err != nil {
			return 0, err
		}
		s, err := p.clf.Decision(x)
		if err != nil {
			return 0, err
		}
		scores[i] = s
	}
	_, pos := p.clf.Classes()
	return classify.AUC(labels, scores, pos)
}

// #endregion csp-pipeline
