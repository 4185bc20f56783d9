package models

// RoomStatus represents the lifecycle state of a room
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// RoundStatus represents the phase of a single round
type RoundStatus string

const (
	RoundCollectingClues RoundStatus = "collecting_clues"
	RoundVoting          RoundStatus = "voting"
	RoundFinished        RoundStatus = "finished"
)

// Role is the secret role dealt to a player when a game starts
type Role string

const (
	RoleCrew     Role = "crew"
	RoleImpostor Role = "impostor"
)

// Winner records how a finished game ended
type Winner string

const (
	WinnerUndecided Winner = ""
	WinnerCrew      Winner = "crew"
	WinnerImpostors Winner = "impostor"
	WinnerDraw      Winner = "draw" // max rounds reached with impostors still alive
)
