package domain

// Driver represents a tow-truck driver.
type Driver struct {
	ID       string
	Name     string
	Email    string
	Phone    string
	PinCode  string // 4-digit shared secret for dashboard login
	IsActive bool

	// CurrentLat/CurrentLng hold the live position while a tracking
	// session is running for this driver. Both are nil when nothing is
	// being tracked; consumers treat the transition to nil as the signal
	// to remove a live marker.
	CurrentLat *float64
	CurrentLng *float64
}

// HasPosition reports whether the driver has a live position set.
func (d *Driver) HasPosition() bool {
	return d.CurrentLat != nil && d.CurrentLng != nil
}
