package model

// Depot is a home base where buses start their day, return overnight, and
// may also charge.
type Depot struct {
	ID       string   `json:"depot_id"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
	ChargerID string  `json:"charger_id,omitempty"`
}
