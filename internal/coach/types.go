package coach

// SpeechPayload is the synthesized-speech attachment the coach service adds
// to conversational responses when its TTS backend is configured.
type SpeechPayload struct {
	Data    string `json:"data"`
	Format  string `json:"format"`
	DataURL string `json:"data_url,omitempty"`
}

// ChatResponse is the shape shared by the /chat and /voice endpoints.
// Time is set when the coach wants the client to arm a countdown timer,
// in MM:SS or HH:MM:SS form. Transcription is only present on /voice.
type ChatResponse struct {
	Response      string         `json:"response"`
	Status        string         `json:"status"`
	Audio         *SpeechPayload `json:"audio,omitempty"`
	Time          string         `json:"time,omitempty"`
	Transcription string         `json:"transcription,omitempty"`
	ErrorMessage  string         `json:"error,omitempty"`
}

// DetectResponse is the verdict returned by /detectscreen and /detectcamera.
type DetectResponse struct {
	IsStudying       bool   `json:"is_studying"`
	ActivityDetected string `json:"activity_detected"`
	TextExtracted    string `json:"text_extracted,omitempty"`
	Analysis         string `json:"analysis,omitempty"`
	Status           string `json:"status"`
	ErrorMessage     string `json:"error,omitempty"`
}

// WelcomeResponse is returned by GET /welcome.
type WelcomeResponse struct {
	Message      string         `json:"message"`
	Audio        *SpeechPayload `json:"audio,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error,omitempty"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type voiceRequest struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

type detectRequest struct {
	Image string `json:"image"`
}
