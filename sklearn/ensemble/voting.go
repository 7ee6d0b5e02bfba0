package ensemble

import (
	"context"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/core/parallel"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
)

// Voting rules.
const (
	VotingSoft = "soft"
	VotingHard = "hard"
)

// NamedEstimator is a voting member with its display name.
type NamedEstimator struct {
	Name      string
	Estimator model.Cloner
}

// VotingClassifier combines heterogeneous members fitted independently on
// the same data. Soft voting averages member probabilities; hard voting
// counts member labels.
type VotingClassifier struct {
	state *model.StateManager

	members []NamedEstimator
	voting  string
	workers int

	fitted []model.Estimator

	logger log.Logger
}

// VotingOption configures a VotingClassifier.
type VotingOption func(*VotingClassifier)

// WithVoting selects "soft" or "hard" voting.
func WithVoting(rule string) VotingOption {
	return func(v *VotingClassifier) { v.voting = rule }
}

// WithVotingWorkers bounds the members fitted concurrently.
func WithVotingWorkers(n int) VotingOption {
	return func(v *VotingClassifier) { v.workers = n }
}

// NewVotingClassifier validates the members and returns a soft-voting
// ensemble. Soft voting requires every member to implement PredictProba.
func NewVotingClassifier(members []NamedEstimator, opts ...VotingOption) (*VotingClassifier, error) {
	v := &VotingClassifier{
		state:   model.NewStateManager(),
		members: append([]NamedEstimator(nil), members...),
		voting:  VotingSoft,
		logger:  log.GetLoggerWithName("ensemble.Voting"),
	}
	for _, opt := range opts {
		opt(v)
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *VotingClassifier) validate() error {
	if v.voting != VotingSoft && v.voting != VotingHard {
		return errors.NewInvalidConfigurationError("VotingClassifier", "voting", "must be soft or hard", v.voting)
	}
	if len(v.members) == 0 {
		return errors.NewInvalidConfigurationError("VotingClassifier", "estimators", "at least one member is required", 0)
	}
	seen := make(map[string]bool, len(v.members))
	for i, m := range v.members {
		if m.Estimator == nil {
			return errors.NewInvalidConfigurationError("VotingClassifier", "estimators", fmt.Sprintf("member %d is nil", i), m.Name)
		}
		if seen[m.Name] {
			return errors.NewInvalidConfigurationError("VotingClassifier", "estimators", "duplicate member name", m.Name)
		}
		seen[m.Name] = true
		if v.voting == VotingSoft && !model.SupportsProba(m.Estimator) {
			return errors.NewIncompatibleMemberError("VotingClassifier", m.Name, "PredictProba")
		}
	}
	return nil
}

// Fit fits a fresh clone of every member.
func (v *VotingClassifier) Fit(X, y mat.Matrix) error {
	return v.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation; the first member error aborts.
func (v *VotingClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	n, p, _, err := model.CheckXY("VotingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	fitted, err := parallel.Map(ctx, len(v.members), v.workers, func(_ context.Context, i int) (model.Estimator, error) {
		est := v.members[i].Estimator.Clone()
		if err := est.Fit(X, y); err != nil {
			return nil, errors.Wrapf(err, "voting member %q", v.members[i].Name)
		}
		return est, nil
	})
	if err != nil {
		return err
	}
	v.fitted = fitted
	v.state.SetDimensions(p, n)
	v.state.SetFitted()
	v.logger.Debug("voting ensemble fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.MembersKey, len(fitted),
	)
	return nil
}

// AverageProba returns the unweighted mean of the member probability
// matrices. Under hard voting it returns the share of member votes.
func (v *VotingClassifier) AverageProba(X mat.Matrix) (*mat.Dense, error) {
	if err := v.state.RequireFitted("VotingClassifier", "AverageProba"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := v.state.CheckFeatures("VotingClassifier.AverageProba", p); err != nil {
		return nil, err
	}
	sum := mat.NewDense(n, 2, nil)
	for i, est := range v.fitted {
		var (
			proba mat.Matrix
			err   error
		)
		if v.voting == VotingSoft {
			proba, err = probaOf(est, X)
		} else {
			proba, err = votesOf(est, X)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "voting member %q", v.members[i].Name)
		}
		sum.Add(sum, proba)
	}
	sum.Scale(1/float64(len(v.fitted)), sum)
	return sum, nil
}

// PredictProba implements model.ProbabilityEstimator.
func (v *VotingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return v.AverageProba(X)
}

// Predict returns the class with the larger averaged probability (or vote
// share); ties go to class 0.
func (v *VotingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	avg, err := v.AverageProba(X)
	if err != nil {
		return nil, err
	}
	return model.ProbaToLabels(avg), nil
}

// Members returns the fitted member estimators in declaration order.
func (v *VotingClassifier) Members() []model.Estimator {
	return append([]model.Estimator(nil), v.fitted...)
}

// Clone returns an unfitted ensemble over clones of the member templates.
func (v *VotingClassifier) Clone() model.Estimator {
	members := make([]NamedEstimator, len(v.members))
	for i, m := range v.members {
		members[i] = NamedEstimator{Name: m.Name, Estimator: m.Estimator.Clone().(model.Cloner)}
	}
	return &VotingClassifier{
		state:   model.NewStateManager(),
		members: members,
		voting:  v.voting,
		workers: v.workers,
		logger:  v.logger,
	}
}

// Name implements model.Named.
func (v *VotingClassifier) Name() string { return "VotingClassifier" }

// GetParams returns the ensemble hyperparameters and member parameters
// under "<member>__<param>" keys.
func (v *VotingClassifier) GetParams() map[string]interface{} {
	params := map[string]interface{}{"voting": v.voting}
	for _, m := range v.members {
		if g, ok := m.Estimator.(model.ParameterGetter); ok {
			for k, val := range g.GetParams() {
				params[m.Name+"__"+k] = val
			}
		}
	}
	return params
}

// SetParams routes "<member>__<param>" keys to members.
func (v *VotingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		if key == "voting" {
			rule, ok := value.(string)
			if !ok {
				return errors.NewInvalidConfigurationError("VotingClassifier", key, fmt.Sprintf("unexpected type %T", value), value)
			}
			v.voting = rule
			continue
		}
		member, param, ok := splitMemberKey(key)
		if !ok {
			return errors.NewInvalidConfigurationError("VotingClassifier", key, "unknown parameter", value)
		}
		idx := -1
		for i, m := range v.members {
			if m.Name == member {
				idx = i
			}
		}
		if idx < 0 {
			return errors.NewInvalidConfigurationError("VotingClassifier", key, "unknown member", member)
		}
		setter, ok := v.members[idx].Estimator.(model.ParameterSetter)
		if !ok {
			return errors.NewIncompatibleMemberError("VotingClassifier", member, "SetParams")
		}
		if err := setter.SetParams(map[string]interface{}{param: value}); err != nil {
			return err
		}
	}
	v.state.Reset()
	v.fitted = nil
	return v.validate()
}

// votesOf returns a member's predicted labels as one-hot n×2 rows.
func votesOf(est model.Estimator, X mat.Matrix) (mat.Matrix, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return nil, err
	}
	n, _ := pred.Dims()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		out.Set(i, int(pred.At(i, 0)), 1)
	}
	return out, nil
}

func splitMemberKey(key string) (member, param string, ok bool) {
	member, param, ok = strings.Cut(key, "__")
	return member, param, ok && member != "" && param != ""
}
