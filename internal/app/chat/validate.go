package chat

// joinRequest is the validated form of a join frame.
type joinRequest struct {
	ChannelID string `validate:"max=64"`
	Identity  string `validate:"required,max=64"`
}

// adminRequest is the validated form of an admin_action frame.
type adminRequest struct {
	Action         Action `validate:"required"`
	TargetIdentity string `validate:"required,max=64"`
	Color          string `validate:"omitempty,hexcolor"`
	Reason         string `validate:"max=500"`
	Role           Role   `validate:"omitempty,oneof=user moderator"`
}
