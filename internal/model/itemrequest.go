package model

// ItemRequest is a requester's posted shipment need.
type ItemRequest struct {
	// ID is the backend's request key.
	ID ID `json:"id"`

	// ItemName describes what should be carried.
	ItemName string `json:"itemName"`

	// Quantity defaults to 1 on the server.
	Quantity int `json:"quantity,omitempty"`

	// WeightKg is the total weight of the item(s).
	WeightKg Kilograms `json:"weightKg"`

	FromCountry string `json:"fromCountry"`
	FromState   string `json:"fromState"`
	FromCity    string `json:"fromCity"`
	ToCountry   string `json:"toCountry"`
	ToState     string `json:"toState"`
	ToCity      string `json:"toCity"`

	// DesiredDeliveryDate is the delivery deadline (YYYY-MM-DD).
	DesiredDeliveryDate string `json:"desiredDeliveryDate"`

	// Notes is free text shown to carriers.
	Notes string `json:"notes"`

	// Status is the server-side request status.
	Status string `json:"status,omitempty"`

	// PotentialMatches is the number of matches found for this request.
	PotentialMatches int `json:"potentialMatches,omitempty"`
}

// Origin returns where the item is picked up.
func (r ItemRequest) Origin() Location {
	return Location{Country: r.FromCountry, State: r.FromState, City: r.FromCity}
}

// Destination returns where the item should be delivered.
func (r ItemRequest) Destination() Location {
	return Location{Country: r.ToCountry, State: r.ToState, City: r.ToCity}
}

// NewItemRequest is the payload for POST /item-requests.
type NewItemRequest struct {
	ItemName            string  `json:"itemName" validate:"required" label:"Item name"`
	WeightKg            float64 `json:"weightKg" validate:"min=0.1" label:"Weight"`
	FromCountry         string  `json:"fromCountry" validate:"required" label:"Pickup country"`
	FromState           string  `json:"fromState" validate:"required" label:"Pickup state"`
	FromCity            string  `json:"fromCity" validate:"required" label:"Pickup city"`
	ToCountry           string  `json:"toCountry" validate:"required" label:"Delivery country"`
	ToState             string  `json:"toState" validate:"required" label:"Delivery state"`
	ToCity              string  `json:"toCity" validate:"required" label:"Delivery city"`
	DesiredDeliveryDate string  `json:"desiredDeliveryDate" validate:"required,datetime=2006-01-02" label:"Delivery date"`
	Notes               string  `json:"notes"`
}
