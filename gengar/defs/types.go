package defs

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reading is a single CGM sample in mg/dL.
type Reading struct {
	ID      *primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Patient string              `bson:"patient" json:"patient"`
	Time    time.Time           `bson:"time" json:"time"`
	MgDL    float64             `bson:"mgdl" json:"mgdl"`
	Trend   string              `bson:"trend,omitempty" json:"trend,omitempty"`
}

// Event is an immutable record of one detected (or imported) interval.
// The analysis window is [Time - Before, Time + After], both in minutes.
type Event struct {
	ID          *primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Patient     string              `bson:"patient" json:"id"`
	Time        time.Time           `bson:"time" json:"timestamp"`
	Before      float64             `bson:"before" json:"minutes_before"`
	After       float64             `bson:"after" json:"minutes_after"`
	Type        string              `bson:"type" json:"type"`
	Description string              `bson:"description" json:"description"`
}

// Start is the inclusive beginning of the analysis window.
func (e *Event) Start() time.Time {
	return e.Time.Add(-Minutes(e.Before))
}

// End is the inclusive end of the analysis window.
func (e *Event) End() time.Time {
	return e.Time.Add(Minutes(e.After))
}

type Direction int

const (
	Hypo Direction = iota
	Hyper
)

func (d Direction) String() string {
	return [...]string{"hypo", "hyper"}[d]
}

func EpisodeType(d Direction, level int) string {
	return fmt.Sprintf("%s level %d episode", d, level)
}

func ExcursionType(d Direction) string {
	return fmt.Sprintf("%s excursion", d)
}

// Minutes converts fractional minutes to a duration.
func Minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
