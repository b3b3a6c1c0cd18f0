package dto

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,max=100,singleline"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateEventRequest struct {
	Title       string   `json:"title" validate:"required,max=200,singleline"`
	Description string   `json:"description" validate:"required,max=5000"`
	Date        string   `json:"date" validate:"required,eventdate"`
	Time        string   `json:"time" validate:"required,eventtime"`
	Location    string   `json:"location" validate:"required,max=200,singleline"`
	Address     string   `json:"address" validate:"max=300,singleline"`
	Category    string   `json:"category" validate:"required,category"`
	Type        string   `json:"type" validate:"omitempty,oneof=public private"`
	MaxCapacity int      `json:"max_capacity" validate:"omitempty,gt=0"`
	Thumbnail   string   `json:"thumbnail" validate:"omitempty,url"`
	Distance    *float64 `json:"distance" validate:"omitempty,gte=0"`
}

// UpdateEventRequest carries only the fields to change. A max_capacity of 0
// removes the limit.
type UpdateEventRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=200,singleline"`
	Description *string  `json:"description" validate:"omitempty,min=1,max=5000"`
	Date        *string  `json:"date" validate:"omitempty,eventdate"`
	Time        *string  `json:"time" validate:"omitempty,eventtime"`
	Location    *string  `json:"location" validate:"omitempty,min=1,max=200,singleline"`
	Address     *string  `json:"address" validate:"omitempty,max=300,singleline"`
	Category    *string  `json:"category" validate:"omitempty,category"`
	Type        *string  `json:"type" validate:"omitempty,oneof=public private"`
	MaxCapacity *int     `json:"max_capacity" validate:"omitempty,gte=0"`
	Thumbnail   *string  `json:"thumbnail" validate:"omitempty,url"`
	Distance    *float64 `json:"distance" validate:"omitempty,gte=0"`
}

type RespondRsvpRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}

// ListEventsQuery mirrors the home, explore and search screen filters.
type ListEventsQuery struct {
	Query       string  `form:"q" validate:"max=200"`
	Category    string  `form:"category"`
	Type        string  `form:"type"`
	Date        string  `form:"date"`
	MaxDistance float64 `form:"max_distance" validate:"gte=0"`
	Sort        string  `form:"sort" validate:"omitempty,oneof=popular newest distance"`
	Limit       int     `form:"limit" validate:"gte=0,lte=200"`
	Offset      int     `form:"offset" validate:"gte=0"`
}
