package dto

type DictionaryResponse struct {
	Words []string `json:"words"`
}

type AddWordsRequest struct {
	Words []string `json:"words"`
}
