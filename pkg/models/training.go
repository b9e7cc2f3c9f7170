package models

type VideoModule struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Videos   []Video `json:"videos"`
	HasQuiz  bool    `json:"has_quiz"`
	Complete bool    `json:"completed"`
}

type Video struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Watched  bool    `json:"watched"`
}

type QuizAnswer struct {
	QuestionID int64  `json:"question_id"`
	Option     string `json:"option"`
}

type QuizResult struct {
	Score   int  `json:"score"`
	Total   int  `json:"total"`
	Passed  bool `json:"passed"`
	Attempt int  `json:"attempt"`
}

type Certificate struct {
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	Size     int    `json:"size"`
}
