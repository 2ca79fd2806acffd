package uid

import "github.com/google/uuid"

// UUID produces version 7 UUIDs. They sort by creation time, which suits
// correlation and message IDs.
type UUID struct{}

func NewUUID() *UUID { return &UUID{} }

func (*UUID) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// RandomUUID produces version 4 UUIDs with 122 random bits and no
// timestamp. Confirmation codes come from here.
type RandomUUID struct{}

func NewRandomUUID() *RandomUUID { return &RandomUUID{} }

func (*RandomUUID) Generate() string {
	return uuid.Must(uuid.NewRandom()).String()
}
