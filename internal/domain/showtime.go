package domain

import "time"

// ClockTime is a time of day rendered in both 12h and 24h forms.
type ClockTime struct {
	H12 string `json:"12h" bson:"12h"`
	H24 string `json:"24h" bson:"24h"`
}

// NewClockTime renders t as "03:04 PM" and "15:04".
func NewClockTime(t time.Time) ClockTime {
	return ClockTime{H12: t.Format("03:04 PM"), H24: t.Format("15:04")}
}

// DayHours is one opening/closing pair.
type DayHours struct {
	Opening ClockTime `json:"opening" bson:"opening"`
	Closing ClockTime `json:"closing" bson:"closing"`
}

// OperationalHours are the generated weekday and weekend hours of a theater.
type OperationalHours struct {
	TheaterID   string    `json:"theater_id" bson:"theater_id"`
	Weekday     DayHours  `json:"weekday" bson:"weekday"`
	Weekend     DayHours  `json:"weekend" bson:"weekend"`
	LastUpdated time.Time `json:"last_updated" bson:"last_updated"`
}

// Showtime is one synthetic screening.
type Showtime struct {
	TheaterID      string    `json:"theater_id" bson:"theater_id"`
	MovieID        int64     `json:"movie_id" bson:"movie_id"`
	MovieTitle     string    `json:"movie_title" bson:"movie_title"`
	TheaterName    string    `json:"theater_name" bson:"theater_name"`
	TheaterAddress Address   `json:"theater_address" bson:"theater_address"`
	ViewType       string    `json:"view_type" bson:"view_type"`
	Date           string    `json:"date" bson:"date"`
	Start          ClockTime `json:"showtime" bson:"showtime"`
	End            ClockTime `json:"end_time" bson:"end_time"`
	CutoffDate     string    `json:"cutoff_date" bson:"cutoff_date"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}
