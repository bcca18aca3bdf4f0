package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// ToWatermill copies headers onto a watermill message metadata map.
func ToWatermill(md Metadata) message.Metadata {
	out := make(message.Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// FromWatermill reads headers back from a watermill message.
func FromWatermill(md message.Metadata) Metadata {
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
