package ensemble

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/dataset"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/sklearn/linear_model"
	"github.com/YuminosukeSato/ensemblecv/sklearn/neighbors"
	"github.com/YuminosukeSato/ensemblecv/sklearn/tree"
)

func synthetic(t *testing.T, n int, seed uint64) (*mat.Dense, *mat.Dense) {
	t.Helper()
	ds, err := dataset.MakeClassification(dataset.SyntheticConfig{
		NSamples:     n,
		NFeatures:    4,
		NInformative: 2,
		Separation:   4,
		Seed:         seed,
	})
	if err != nil {
		t.Fatalf("MakeClassification failed: %v", err)
	}
	return ds.X(), ds.Y()
}

func accuracy(t *testing.T, est model.Estimator, X, y mat.Matrix) float64 {
	t.Helper()
	pred, err := est.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	n, _ := y.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// labelOnly is an estimator without PredictProba.
type labelOnly struct{}

func (labelOnly) Fit(X, y mat.Matrix) error { return nil }
func (labelOnly) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	return mat.NewDense(n, 1, nil), nil
}
func (labelOnly) Clone() model.Estimator { return labelOnly{} }

func votingMembers() []NamedEstimator {
	return []NamedEstimator{
		{Name: "lr", Estimator: linear_model.NewLogisticRegression()},
		{Name: "tree", Estimator: tree.NewDecisionTreeClassifier(tree.WithMaxDepth(4))},
		{Name: "knn", Estimator: neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(5))},
	}
}

func TestVotingClassifier_ProbabilitiesSumToOne(t *testing.T) {
	X, y := synthetic(t, 80, 3)
	voting, err := NewVotingClassifier(votingMembers(), WithVotingWorkers(2))
	if err != nil {
		t.Fatalf("NewVotingClassifier failed: %v", err)
	}
	if err := voting.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	avg, err := voting.AverageProba(X)
	if err != nil {
		t.Fatalf("AverageProba failed: %v", err)
	}
	pred, err := voting.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	n, _ := X.Dims()
	for i := 0; i < n; i++ {
		p0, p1 := avg.At(i, 0), avg.At(i, 1)
		if math.Abs(p0+p1-1) > 1e-9 {
			t.Fatalf("row %d sums to %v", i, p0+p1)
		}
		want := 0.0
		if p1 > p0 {
			want = 1
		}
		if pred.At(i, 0) != want {
			t.Errorf("row %d: predicted %v but averaged proba is %v/%v", i, pred.At(i, 0), p0, p1)
		}
	}
	if acc := accuracy(t, voting, X, y); acc < 0.9 {
		t.Errorf("training accuracy too low: %v", acc)
	}
	if len(voting.Members()) != 3 {
		t.Errorf("expected 3 fitted members, got %d", len(voting.Members()))
	}
}

func TestVotingClassifier_MembersMatchIndependentFits(t *testing.T) {
	X, y := synthetic(t, 60, 5)
	voting, err := NewVotingClassifier(votingMembers())
	if err != nil {
		t.Fatalf("NewVotingClassifier failed: %v", err)
	}
	if err := voting.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	avg, err := voting.AverageProba(X)
	if err != nil {
		t.Fatalf("AverageProba failed: %v", err)
	}

	n, _ := X.Dims()
	want := mat.NewDense(n, 2, nil)
	for _, m := range votingMembers() {
		est := m.Estimator.Clone()
		if err := est.Fit(X, y); err != nil {
			t.Fatalf("member fit failed: %v", err)
		}
		proba, err := est.(model.ProbabilityEstimator).PredictProba(X)
		if err != nil {
			t.Fatalf("member PredictProba failed: %v", err)
		}
		want.Add(want, proba)
	}
	want.Scale(1.0/3, want)
	if !mat.EqualApprox(avg, want, 1e-12) {
		t.Error("averaged probabilities differ from the mean of independently fitted members")
	}
}

func TestVotingClassifier_IncompatibleMember(t *testing.T) {
	members := append(votingMembers(), NamedEstimator{Name: "stub", Estimator: labelOnly{}})
	_, err := NewVotingClassifier(members)
	var incompatible *errors.IncompatibleMemberError
	if !errors.As(err, &incompatible) {
		t.Fatalf("expected IncompatibleMemberError, got %v", err)
	}
	if incompatible.Member != "stub" {
		t.Errorf("error names member %q", incompatible.Member)
	}

	if _, err := NewVotingClassifier(members, WithVoting(VotingHard)); err != nil {
		t.Errorf("hard voting should accept label-only members: %v", err)
	}
}

func TestVotingClassifier_SetParamsRoutesToMembers(t *testing.T) {
	voting, err := NewVotingClassifier(votingMembers())
	if err != nil {
		t.Fatalf("NewVotingClassifier failed: %v", err)
	}
	if err := voting.SetParams(map[string]interface{}{"knn__n_neighbors": 14, "tree__max_depth": 2}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	params := voting.GetParams()
	if params["knn__n_neighbors"] != 14 || params["tree__max_depth"] != 2 {
		t.Errorf("member params not updated: %v", params)
	}
	if err := voting.SetParams(map[string]interface{}{"svc__C": 1.0}); !errors.IsInvalidConfiguration(err) {
		t.Errorf("expected InvalidConfiguration for unknown member, got %v", err)
	}
}

func TestBaggingClassifier_SingleMemberEqualsBaseFit(t *testing.T) {
	X, y := synthetic(t, 50, 11)
	base := tree.NewDecisionTreeClassifier(tree.WithMaxDepth(3))

	bag, err := NewBaggingClassifier(base, WithNEstimators(1), WithBaggingSeed(7))
	if err != nil {
		t.Fatalf("NewBaggingClassifier failed: %v", err)
	}
	if err := bag.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	rows := bag.SampleIndices(0)
	if len(rows) != 50 {
		t.Fatalf("bootstrap size = %d, want 50", len(rows))
	}
	labels, _ := model.Labels("test", y)
	single := base.Clone()
	if err := single.Fit(take(X, rows, nil), takeLabels(labels, rows)); err != nil {
		t.Fatalf("single fit failed: %v", err)
	}

	got, err := bag.Predict(X)
	if err != nil {
		t.Fatalf("bagging Predict failed: %v", err)
	}
	want, err := single.Predict(X)
	if err != nil {
		t.Fatalf("single Predict failed: %v", err)
	}
	if !mat.Equal(got, want) {
		t.Error("n_estimators=1 bagging must reproduce the single bootstrap fit")
	}
}

func TestBaggingClassifier_ReproducibleAcrossWorkers(t *testing.T) {
	X, y := synthetic(t, 60, 13)
	fit := func(workers int) *BaggingClassifier {
		bag, err := NewBaggingClassifier(tree.NewDecisionTreeClassifier(),
			WithNEstimators(8), WithBaggingSeed(42), WithBaggingWorkers(workers), WithMaxFeatures(0.5))
		if err != nil {
			t.Fatalf("NewBaggingClassifier failed: %v", err)
		}
		if err := bag.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		return bag
	}
	a, b := fit(1), fit(4)
	for i := 0; i < 8; i++ {
		ra, rb := a.SampleIndices(i), b.SampleIndices(i)
		for k := range ra {
			if ra[k] != rb[k] {
				t.Fatalf("member %d bootstrap differs between runs", i)
			}
		}
		fa := a.FeatureIndices(i)
		if len(fa) != 2 {
			t.Fatalf("member %d uses %d features, want 2", i, len(fa))
		}
		if fa[0] >= fa[1] {
			t.Errorf("member %d features not sorted/distinct: %v", i, fa)
		}
	}
	pa, _ := a.PredictProba(X)
	pb, _ := b.PredictProba(X)
	if !mat.Equal(pa, pb) {
		t.Error("probabilities differ between worker counts")
	}
}

func TestBaggingClassifier_Validation(t *testing.T) {
	if _, err := NewBaggingClassifier(labelOnly{}, WithBaggingVoting(VotingSoft)); err == nil {
		t.Error("expected IncompatibleMember for soft voting without PredictProba")
	}
	for _, opt := range []BaggingOption{WithNEstimators(0), WithMaxSamples(0), WithMaxFeatures(1.5), WithBaggingVoting("rank")} {
		if _, err := NewBaggingClassifier(tree.NewDecisionTreeClassifier(), opt); !errors.IsInvalidConfiguration(err) {
			t.Errorf("expected InvalidConfiguration, got %v", err)
		}
	}
}

func TestGradientBoostingClassifier_Fit(t *testing.T) {
	X, y := synthetic(t, 120, 17)
	gb := NewGradientBoostingClassifier(WithBoostingRounds(50), WithLearningRate(0.2))
	if err := gb.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if gb.NTrees() != 50 {
		t.Errorf("NTrees = %d, want 50", gb.NTrees())
	}
	loss := gb.LossHistory()
	if loss[len(loss)-1] >= loss[0] {
		t.Errorf("training loss did not decrease: first %v last %v", loss[0], loss[len(loss)-1])
	}
	if acc := accuracy(t, gb, X, y); acc < 0.95 {
		t.Errorf("training accuracy too low: %v", acc)
	}

	imp, err := gb.FeatureImportances()
	if err != nil {
		t.Fatalf("FeatureImportances failed: %v", err)
	}
	sum := 0.0
	for _, v := range imp {
		sum += v
	}
	if len(imp) != 4 || math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances = %v", imp)
	}

	proba, err := gb.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	for i := 0; i < 120; i++ {
		if math.Abs(proba.At(i, 0)+proba.At(i, 1)-1) > 1e-12 {
			t.Fatalf("row %d does not sum to 1", i)
		}
	}
}

func TestGradientBoostingClassifier_Validation(t *testing.T) {
	X, y := synthetic(t, 30, 1)
	tests := []struct {
		name string
		opt  BoostingOption
	}{
		{"zero learning rate", WithLearningRate(0)},
		{"learning rate above 1", WithLearningRate(1.5)},
		{"zero rounds", WithBoostingRounds(0)},
		{"zero depth", WithBoostingMaxDepth(0)},
		{"negative lambda", WithLambda(-1)},
		{"subsample above 1", WithSubsample(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewGradientBoostingClassifier(tt.opt).Fit(X, y); !errors.IsInvalidConfiguration(err) {
				t.Errorf("expected InvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestRandomForestClassifier_Importances(t *testing.T) {
	X, y := synthetic(t, 150, 23)
	rf := NewRandomForestClassifier(WithTrees(30), WithForestSeed(1))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	imp, err := rf.FeatureImportances()
	if err != nil {
		t.Fatalf("FeatureImportances failed: %v", err)
	}
	sum := 0.0
	for _, v := range imp {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances sum to %v", sum)
	}
	if imp[0] <= imp[2] || imp[0] <= imp[3] {
		t.Errorf("informative feature 0 should beat noise features: %v", imp)
	}
	if acc := accuracy(t, rf, X, y); acc < 0.95 {
		t.Errorf("training accuracy too low: %v", acc)
	}

	clone := rf.Clone().(*RandomForestClassifier)
	if _, err := clone.FeatureImportances(); err == nil {
		t.Error("clone must be unfitted")
	}
}

func TestSetParams_TypeMismatchKeepsSetting(t *testing.T) {
	bag, err := NewBaggingClassifier(tree.NewDecisionTreeClassifier(), WithNEstimators(7))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name  string
		est   model.ParameterSetter
		key   string
		value interface{}
	}{
		{"bagging", bag, "n_estimators", 2.5},
		{"boosting", NewGradientBoostingClassifier(), "learning_rate", "fast"},
		{"forest", NewRandomForestClassifier(), "n_estimators", "many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getter := tt.est.(model.ParameterGetter)
			before := getter.GetParams()[tt.key]
			err := tt.est.SetParams(map[string]interface{}{tt.key: tt.value})
			if !errors.IsInvalidConfiguration(err) {
				t.Fatalf("expected InvalidConfiguration, got %v", err)
			}
			if after := getter.GetParams()[tt.key]; after != before {
				t.Errorf("%s changed from %v to %v after a rejected update", tt.key, before, after)
			}
		})
	}
}
