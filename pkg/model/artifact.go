package model

// Model component names, one per risk dimension.
const (
	ComponentPolitical     = "political_stability"
	ComponentConflict      = "conflict_risk"
	ComponentEconomic      = "economic_risk"
	ComponentInstitutional = "institutional_quality"
)

// ComponentNames lists the components every artifact must carry.
var ComponentNames = []string{
	ComponentPolitical,
	ComponentConflict,
	ComponentEconomic,
	ComponentInstitutional,
}

// Node is one entry in a flat decision tree array. A feature of -1
// marks a leaf, with the prediction in Value.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is a decision tree as a flat node array rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks the tree for one feature vector.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature == -1 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Boosted is a gradient boosted stage: base value plus the sum of tree
// outputs. Leaf values are pre-scaled by the learning rate at training
// time.
type Boosted struct {
	Base  float64 `json:"base"`
	Trees []*Tree `json:"trees"`
}

// Component holds the two ensembles for one risk dimension and the
// ordered feature names its trees index into.
type Component struct {
	Features []string `json:"features"`
	Bagged   []*Tree  `json:"bagged"`
	Boosted  Boosted  `json:"boosted"`
}

// Artifact is the on-disk model file.
type Artifact struct {
	Version    string                `json:"version"`
	TrainedAt  string                `json:"trained_at,omitempty"`
	Components map[string]*Component `json:"components"`
}
