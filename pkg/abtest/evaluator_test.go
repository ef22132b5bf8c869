package abtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/mixbaba/mixbaba/pkg/apis/abtest/v1"
)

func newTestEvaluator(t *testing.T, opts ...func(*Options)) *Evaluator {
	options := DefaultOptions()
	for _, o := range opts {
		o(&options)
	}
	e, err := NewEvaluator(options)
	require.NoError(t, err)
	return e
}

func TestBuildPosterior(t *testing.T) {
	p, err := BuildPosterior(v1.Counts{Impressions: 10000, Conversions: 100})
	require.NoError(t, err)
	assert.Equal(t, 101.0, p.A)
	assert.Equal(t, 9901.0, p.B)

	_, err = BuildPosterior(v1.Counts{Impressions: 10000, Conversions: 0})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = BuildPosterior(v1.Counts{Impressions: 10, Conversions: 11})
	assert.ErrorIs(t, err, ErrInvalidCounts)

	_, err = BuildPosterior(v1.Counts{Impressions: -1, Conversions: 0})
	assert.ErrorIs(t, err, ErrInvalidCounts)
}

func TestCompareGroups(t *testing.T) {
	control := v1.Counts{Impressions: 10000, Conversions: 100}

	t.Run("different samples", func(t *testing.T) {
		cmp, err := CompareGroups(control, v1.Counts{Impressions: 10000, Conversions: 120})
		require.NoError(t, err)
		assert.InDelta(t, 0.198019801, cmp.Uplift, 1e-6)
		assert.InDelta(t, 0.91201253, cmp.Probability, 1e-6)
		assert.Greater(t, cmp.FisherExact, 0.0)
		assert.Less(t, cmp.FisherExact, 1.0)
	})

	t.Run("same samples", func(t *testing.T) {
		cmp, err := CompareGroups(control, control)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, cmp.Uplift, 1e-9)
		assert.InDelta(t, 0.5, cmp.Probability, 1e-6)
	})

	t.Run("no conversions", func(t *testing.T) {
		_, err := CompareGroups(v1.Counts{Impressions: 500}, control)
		assert.ErrorIs(t, err, ErrInsufficientData)
		_, err = CompareGroups(control, v1.Counts{Impressions: 500})
		assert.ErrorIs(t, err, ErrInsufficientData)
	})
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	assert.Error(t, Options{ProbabilityThreshold: 1, ControlTolerance: 0.4}.Validate())
	assert.Error(t, Options{ProbabilityThreshold: 0.95, ControlTolerance: 0}.Validate())
	assert.Error(t, Options{ProbabilityThreshold: 0.95, ControlTolerance: 0.6}.Validate())

	_, err := NewEvaluator(Options{})
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	singleArm := &v1.RoleAssignment{
		Control: "control",
		Tests:   []v1.Arm{{Name: "Test", Group: "test"}},
	}
	twoControls := &v1.RoleAssignment{
		Control:  "control",
		Control2: "control2",
		Tests:    []v1.Arm{{Name: "Test", Group: "test"}},
	}
	twoArms := &v1.RoleAssignment{
		Control: "control",
		Tests:   []v1.Arm{{Name: "Test", Group: "test"}, {Name: "Test2", Group: "test2"}},
	}

	tests := []struct {
		name            string
		obs             v1.Observations
		roles           *v1.RoleAssignment
		tolerance       float64
		expectedStatus  v1.Status
		expectedComment string
		expectedControl v1.Counts
		expectedArms    map[string]v1.Status
	}{
		{
			name: "significant",
			obs: v1.Observations{
				"control": {Impressions: 10000, Conversions: 100},
				"test":    {Impressions: 10000, Conversions: 150},
			},
			roles:           singleArm,
			expectedStatus:  v1.Evaluated,
			expectedComment: v1.CommentResultOK,
			expectedControl: v1.Counts{Impressions: 10000, Conversions: 100},
			expectedArms:    map[string]v1.Status{"Test": v1.Significant},
		},
		{
			name: "uncertain",
			obs: v1.Observations{
				"control": {Impressions: 10000, Conversions: 100},
				"test":    {Impressions: 10000, Conversions: 120},
			},
			roles:           singleArm,
			expectedStatus:  v1.Evaluated,
			expectedComment: v1.CommentResultUncertain,
			expectedControl: v1.Counts{Impressions: 10000, Conversions: 100},
			expectedArms:    map[string]v1.Status{"Test": v1.Uncertain},
		},
		{
			name: "control without conversions",
			obs: v1.Observations{
				"control": {Impressions: 10000},
				"test":    {Impressions: 10000, Conversions: 120},
			},
			roles:           singleArm,
			expectedStatus:  v1.InsufficientControlData,
			expectedComment: v1.CommentTooFewData,
		},
		{
			name: "control missing",
			obs: v1.Observations{
				"test": {Impressions: 10000, Conversions: 120},
			},
			roles:           singleArm,
			expectedStatus:  v1.InsufficientData,
			expectedComment: v1.CommentTooFewData,
		},
		{
			name: "control breaks invariant",
			obs: v1.Observations{
				"control": {Impressions: 10, Conversions: 20},
				"test":    {Impressions: 10000, Conversions: 120},
			},
			roles:           singleArm,
			expectedStatus:  v1.InsufficientData,
			expectedComment: v1.CommentTooFewData,
		},
		{
			name: "test missing",
			obs: v1.Observations{
				"control": {Impressions: 10000, Conversions: 100},
			},
			roles:           singleArm,
			expectedStatus:  v1.InsufficientData,
			expectedComment: v1.CommentTooFewData,
		},
		{
			name: "second control without conversions",
			obs: v1.Observations{
				"control":  {Impressions: 10000, Conversions: 100},
				"control2": {Impressions: 10000},
				"test":     {Impressions: 10000, Conversions: 120},
			},
			roles:           twoControls,
			expectedStatus:  v1.InsufficientControl2Data,
			expectedComment: v1.CommentTooFewData,
		},
		{
			name: "second control missing",
			obs: v1.Observations{
				"control": {Impressions: 10000, Conversions: 100},
				"test":    {Impressions: 10000, Conversions: 120},
			},
			roles:           twoControls,
			expectedStatus:  v1.InsufficientData,
			expectedComment: v1.CommentTooFewData,
		},
		{
			name: "controls disagree",
			obs: v1.Observations{
				"control":  {Impressions: 10000, Conversions: 100},
				"control2": {Impressions: 10000, Conversions: 200},
				"test":     {Impressions: 10000, Conversions: 120},
			},
			roles:           twoControls,
			expectedStatus:  v1.ControlsDisagree,
			expectedComment: v1.CommentControlsDiffer,
		},
		{
			name: "controls disagree with default tolerance",
			obs: v1.Observations{
				"control":  {Impressions: 10000, Conversions: 100},
				"control2": {Impressions: 10000, Conversions: 120},
				"test":     {Impressions: 10000, Conversions: 150},
			},
			roles:           twoControls,
			expectedStatus:  v1.ControlsDisagree,
			expectedComment: v1.CommentControlsDiffer,
		},
		{
			name: "controls pooled with wider tolerance",
			obs: v1.Observations{
				"control":  {Impressions: 10000, Conversions: 100},
				"control2": {Impressions: 10000, Conversions: 120},
				"test":     {Impressions: 10000, Conversions: 150},
			},
			roles:           twoControls,
			tolerance:       0.45,
			expectedStatus:  v1.Evaluated,
			expectedComment: v1.CommentResultOK,
			expectedControl: v1.Counts{Impressions: 20000, Conversions: 220},
			expectedArms:    map[string]v1.Status{"Test": v1.Significant},
		},
		{
			name: "arm without conversions is skipped",
			obs: v1.Observations{
				"control": {Impressions: 10000, Conversions: 100},
				"test":    {Impressions: 10000},
				"test2":   {Impressions: 10000, Conversions: 150},
			},
			roles:           twoArms,
			expectedStatus:  v1.Evaluated,
			expectedComment: "Test: " + v1.CommentNoArmConversions + "; Test2: " + v1.CommentResultOK,
			expectedControl: v1.Counts{Impressions: 10000, Conversions: 100},
			expectedArms:    map[string]v1.Status{"Test": v1.ArmInsufficientData, "Test2": v1.Significant},
		},
		{
			name: "no test arms",
			obs: v1.Observations{
				"control": {Impressions: 10000, Conversions: 100},
			},
			roles:           &v1.RoleAssignment{Control: "control"},
			expectedStatus:  v1.InsufficientData,
			expectedComment: v1.CommentTooFewData,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEvaluator(t, func(o *Options) {
				if tc.tolerance != 0 {
					o.ControlTolerance = tc.tolerance
				}
			})
			evaluation := e.Evaluate(tc.obs, tc.roles, Labels{Discriminant: "properties.country", Cohort: "SE"})
			record := evaluation.Record

			assert.False(t, evaluation.Inferred)
			assert.Equal(t, "properties.country", record.Discriminant)
			assert.Equal(t, "SE", record.Cohort)
			assert.Equal(t, tc.expectedStatus, record.Status, "got status %s", record.Status)
			assert.Equal(t, tc.expectedComment, record.Comment)
			assert.Equal(t, tc.expectedControl, record.Control)
			assert.Equal(t, tc.expectedStatus.Terminal(), len(record.Arms) == 0)

			for _, arm := range record.Arms {
				expected, ok := tc.expectedArms[arm.Arm]
				require.True(t, ok, "unexpected arm %s", arm.Arm)
				assert.Equal(t, expected, arm.Status, "arm %s", arm.Arm)
				if expected == v1.ArmInsufficientData {
					assert.Nil(t, arm.Uplift)
					assert.Nil(t, arm.Probability)
				} else {
					require.NotNil(t, arm.Uplift)
					require.NotNil(t, arm.Probability)
				}
			}
		})
	}
}

func TestEvaluateKnownValues(t *testing.T) {
	e := newTestEvaluator(t)
	evaluation := e.Evaluate(v1.Observations{
		"control": {Impressions: 10000, Conversions: 100},
		"test":    {Impressions: 10000, Conversions: 120},
	}, &v1.RoleAssignment{Control: "control", Tests: []v1.Arm{{Name: "Test", Group: "test"}}}, Labels{})

	arm, ok := evaluation.Record.Arm("Test")
	require.True(t, ok)
	require.NotNil(t, arm.Uplift)
	assert.InDelta(t, 0.198019801, *arm.Uplift, 1e-6)
	assert.InDelta(t, 0.912012, *arm.Probability, 1e-6)
}

func TestEvaluatePoolingMatchesDoubledControl(t *testing.T) {
	e := newTestEvaluator(t)
	test := v1.Counts{Impressions: 10000, Conversions: 120}
	evaluation := e.Evaluate(v1.Observations{
		"control":  {Impressions: 10000, Conversions: 100},
		"control2": {Impressions: 10000, Conversions: 100},
		"test":     test,
	}, &v1.RoleAssignment{Control: "control", Control2: "control2", Tests: []v1.Arm{{Name: "Test", Group: "test"}}}, Labels{})

	require.Equal(t, v1.Evaluated, evaluation.Record.Status)
	arm, ok := evaluation.Record.Arm("Test")
	require.True(t, ok)

	doubled, err := CompareGroups(v1.Counts{Impressions: 20000, Conversions: 200}, test)
	require.NoError(t, err)
	assert.InDelta(t, doubled.Probability, *arm.Probability, 1e-12)
	assert.InDelta(t, doubled.Uplift, *arm.Uplift, 1e-12)
}

func TestEvaluateInfersRoles(t *testing.T) {
	e := newTestEvaluator(t)
	evaluation := e.Evaluate(v1.Observations{
		"control":  {Impressions: 10000, Conversions: 100},
		"test":     {Impressions: 10000, Conversions: 150},
		"test2":    {Impressions: 10000, Conversions: 90},
		"test_new": {Impressions: 10000, Conversions: 500},
		"$overall": {Impressions: 40000, Conversions: 840},
	}, nil, Labels{Discriminant: "None", Cohort: "None"})

	assert.True(t, evaluation.Inferred)
	assert.Equal(t, "control", evaluation.Roles.Control)
	assert.Len(t, evaluation.Roles.Tests, 2)
	require.Len(t, evaluation.Diagnostics, 1)
	assert.Equal(t, "test_new", evaluation.Diagnostics[0].Group)

	assert.Equal(t, v1.Evaluated, evaluation.Record.Status)
	arm, ok := evaluation.Record.Arm("Test")
	require.True(t, ok)
	assert.Equal(t, v1.Significant, arm.Status)
	arm, ok = evaluation.Record.Arm("Test2")
	require.True(t, ok)
	assert.Equal(t, v1.Uncertain, arm.Status)
	assert.Less(t, *arm.Uplift, 0.0)
}

func TestEvaluateInferenceWithoutControl(t *testing.T) {
	e := newTestEvaluator(t)
	evaluation := e.Evaluate(v1.Observations{
		"a": {Impressions: 100, Conversions: 10},
		"b": {Impressions: 100, Conversions: 12},
	}, nil, Labels{})

	assert.True(t, evaluation.Inferred)
	assert.Equal(t, v1.InsufficientData, evaluation.Record.Status)
	assert.Empty(t, evaluation.Diagnostics)
}
