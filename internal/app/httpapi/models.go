package httpapi

import "time"

// openAIModel is one entry in the OpenAI-shaped /v1/models listing.
type openAIModel struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type openAIModelList struct {
	Object string        `json:"object"`
	Data   []openAIModel `json:"data"`
}

// anthropicModel is one entry in the Anthropic-shaped /v1/models listing.
type anthropicModel struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
}

type anthropicModelList struct {
	Data []anthropicModel `json:"data"`
}

func buildOpenAIModelList(names []string, createdAt time.Time) openAIModelList {
	list := openAIModelList{Object: "list"}
	for _, name := range names {
		list.Data = append(list.Data, openAIModel{
			ID:      name,
			Object:  "model",
			Created: createdAt.Unix(),
			OwnedBy: "llmgate",
		})
	}
	return list
}

func buildAnthropicModelList(names []string) anthropicModelList {
	list := anthropicModelList{}
	for _, name := range names {
		list.Data = append(list.Data, anthropicModel{
			ID:          name,
			Type:        "model",
			DisplayName: name,
		})
	}
	return list
}
