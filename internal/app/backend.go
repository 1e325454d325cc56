// Package app assembles the backend handler from configuration. Both the
// Lambda entrypoint and the container server build on it.
package app

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"analytica-chat/handler"
	"analytica-chat/internal/config"
	"analytica-chat/internal/integrations/openai"
	"analytica-chat/internal/integrations/paramstore"
	"analytica-chat/internal/repository"
	"analytica-chat/internal/usecase"
)

func NewBackendHandler(ctx context.Context, cfg *config.Backend) (*handler.Handler, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("create SSM client: %w", err)
	}
	stateClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		return nil, fmt.Errorf("create state client: %w", err)
	}
	openaiClient, err := openai.NewClient(ssmClient, cfg.ParamPrefix)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI client: %w", err)
	}

	settings, err := usecase.NewSettingsLoader(ssmClient, cfg.ParamPrefix)
	if err != nil {
		return nil, fmt.Errorf("create settings loader: %w", err)
	}
	auth, err := usecase.NewAuthService(settings, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("create auth service: %w", err)
	}
	agent, err := usecase.NewAgentService(settings, openaiClient, stateClient, cfg.MaxContextItems, cfg.MaxMessageLength)
	if err != nil {
		return nil, fmt.Errorf("create agent service: %w", err)
	}

	h, err := handler.NewHandler(auth, agent)
	if err != nil {
		return nil, fmt.Errorf("create handler: %w", err)
	}
	return h, nil
}
