package model

// NodeKind tags which concrete asset a Node wraps.
type NodeKind int

const (
	NodeStop NodeKind = iota
	NodeDepot
	NodeCharger
)

// Node is the tagged-variant vertex type used to build the optimizer's
// space-time graph without a shared base type for Stop/Depot/ChargingStation.
// Exactly one of StopID, DepotID, ChargerID is populated, matching Kind.
type Node struct {
	Kind      NodeKind
	StopID    string
	DepotID   string
	ChargerID string
	Location  Location
}

// ID returns the underlying asset identifier regardless of kind.
func (n Node) ID() string {
	switch n.Kind {
	case NodeDepot:
		return n.DepotID
	case NodeCharger:
		return n.ChargerID
	default:
		return n.StopID
	}
}

func StopNode(s *Stop) Node {
	return Node{Kind: NodeStop, StopID: s.ID, Location: s.Location}
}

func DepotNode(d *Depot) Node {
	return Node{Kind: NodeDepot, DepotID: d.ID, Location: d.Location}
}

func ChargerNode(c *ChargingStation) Node {
	return Node{Kind: NodeCharger, ChargerID: c.ID, Location: c.Location}
}
