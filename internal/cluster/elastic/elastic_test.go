package elastic

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

// fakeEC2 implements ec2API, recording calls and returning canned
// responses, so instance lifecycle dispatch is testable without live AWS
// credentials or network access.
type fakeEC2 struct {
	instanceStates map[string]types.InstanceStateName

	startCalls     []string
	stopCalls      []string
	terminateCalls []string
}

func newFakeEC2() *fakeEC2 {
	return &fakeEC2{instanceStates: map[string]types.InstanceStateName{}}
}

func (f *fakeEC2) DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	return &ec2.DescribeKeyPairsOutput{}, nil
}

func (f *fakeEC2) CreateKeyPair(ctx context.Context, params *ec2.CreateKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.CreateKeyPairOutput, error) {
	return &ec2.CreateKeyPairOutput{KeyMaterial: aws.String("fake-key-material")}, nil
}

func (f *fakeEC2) DeleteKeyPair(ctx context.Context, params *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	return &ec2.DeleteKeyPairOutput{}, nil
}

func (f *fakeEC2) DescribeAvailabilityZones(ctx context.Context, params *ec2.DescribeAvailabilityZonesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error) {
	return &ec2.DescribeAvailabilityZonesOutput{
		AvailabilityZones: []types.AvailabilityZone{
			{ZoneName: aws.String("us-east-1b")},
			{ZoneName: aws.String("us-east-1a")},
		},
	}, nil
}

func (f *fakeEC2) DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	return &ec2.DescribeImagesOutput{}, nil
}

func (f *fakeEC2) RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	id := "i-new"
	f.instanceStates[id] = types.InstanceStateNamePending
	return &ec2.RunInstancesOutput{Instances: []types.Instance{{InstanceId: aws.String(id)}}}, nil
}

func (f *fakeEC2) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.terminateCalls = append(f.terminateCalls, params.InstanceIds...)
	for _, id := range params.InstanceIds {
		f.instanceStates[id] = types.InstanceStateNameTerminated
	}
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *fakeEC2) StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	f.startCalls = append(f.startCalls, params.InstanceIds...)
	for _, id := range params.InstanceIds {
		f.instanceStates[id] = types.InstanceStateNameRunning
	}
	return &ec2.StartInstancesOutput{}, nil
}

func (f *fakeEC2) StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	f.stopCalls = append(f.stopCalls, params.InstanceIds...)
	for _, id := range params.InstanceIds {
		f.instanceStates[id] = types.InstanceStateNameStopped
	}
	return &ec2.StopInstancesOutput{}, nil
}

func (f *fakeEC2) CreateImage(ctx context.Context, params *ec2.CreateImageInput, optFns ...func(*ec2.Options)) (*ec2.CreateImageOutput, error) {
	return &ec2.CreateImageOutput{ImageId: aws.String("ami-fake")}, nil
}

func (f *fakeEC2) DescribeInstanceStatus(ctx context.Context, params *ec2.DescribeInstanceStatusInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceStatusOutput, error) {
	return &ec2.DescribeInstanceStatusOutput{}, nil
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if len(params.InstanceIds) == 0 {
		return &ec2.DescribeInstancesOutput{}, nil
	}
	id := params.InstanceIds[0]
	state, ok := f.instanceStates[id]
	if !ok {
		return &ec2.DescribeInstancesOutput{}, nil
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []types.Reservation{{
			Instances: []types.Instance{{
				InstanceId:      aws.String(id),
				State:           &types.InstanceState{Name: state},
				PublicIpAddress: aws.String("203.0.113.10"),
			}},
		}},
	}, nil
}

func (f *fakeEC2) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return &ec2.DescribeSecurityGroupsOutput{}, nil
}

func (f *fakeEC2) CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String("sg-fake")}, nil
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func testBackend(f *fakeEC2, cloud *model.AmazonCloud) *Backend {
	return &Backend{cfg: Config{Cloud: cloud, ProjectCode: "proj"}, ec2: f}
}

func TestRequiredAgentCountUsesConfiguredMaxThreadsPerAgent(t *testing.T) {
	max := 25
	b := testBackend(newFakeEC2(), &model.AmazonCloud{MaxThreadsPerAgent: &max, InstanceType: "t3a.large"})
	n, err := b.RequiredAgentCount(&model.JmeterPlan{LatestThreadsCount: 100})
	if err != nil {
		t.Fatalf("RequiredAgentCount: %v", err)
	}
	if n != 4 {
		t.Fatalf("RequiredAgentCount = %d, want 4", n)
	}
}

func TestRequiredAgentCountFallsBackToInstanceTypeDefault(t *testing.T) {
	b := testBackend(newFakeEC2(), &model.AmazonCloud{InstanceType: "t3a.large"})
	n, err := b.RequiredAgentCount(&model.JmeterPlan{LatestThreadsCount: 41})
	if err != nil {
		t.Fatalf("RequiredAgentCount: %v", err)
	}
	// t3a.large defaults to 20 threads/agent, so ceil(41/20) = 3.
	if n != 3 {
		t.Fatalf("RequiredAgentCount = %d, want 3", n)
	}
}

func TestRequiredAgentCountRejectsZeroThreadPlan(t *testing.T) {
	b := testBackend(newFakeEC2(), &model.AmazonCloud{InstanceType: "t3a.large"})
	if _, err := b.RequiredAgentCount(&model.JmeterPlan{LatestThreadsCount: 0}); err == nil {
		t.Fatal("expected an error sizing a plan with no thread count")
	}
}

func TestEnsureAgentsStartsExistingIdentifierInstead(t *testing.T) {
	f := newFakeEC2()
	f.instanceStates["i-existing"] = types.InstanceStateNameStopped
	b := testBackend(f, &model.AmazonCloud{InstanceType: "t3a.large"})

	agents := []model.LoadAgent{{ID: 1, Identifier: "i-existing"}}
	if err := b.EnsureAgents(hscontext.Background(), agents, 1); err != nil {
		t.Fatalf("EnsureAgents: %v", err)
	}
	if len(f.startCalls) != 1 || f.startCalls[0] != "i-existing" {
		t.Fatalf("startCalls = %v, want [i-existing]", f.startCalls)
	}
}

func TestEnsureAgentsSkipsStartWhenAlreadyRunning(t *testing.T) {
	f := newFakeEC2()
	f.instanceStates["i-running"] = types.InstanceStateNameRunning
	b := testBackend(f, &model.AmazonCloud{InstanceType: "t3a.large"})

	agents := []model.LoadAgent{{ID: 1, Identifier: "i-running"}}
	if err := b.EnsureAgents(hscontext.Background(), agents, 1); err != nil {
		t.Fatalf("EnsureAgents: %v", err)
	}
	if len(f.startCalls) != 0 {
		t.Fatalf("startCalls = %v, want none (already running)", f.startCalls)
	}
}

func TestStopAgentClearsPublicIP(t *testing.T) {
	f := newFakeEC2()
	f.instanceStates["i-1"] = types.InstanceStateNameRunning
	b := testBackend(f, &model.AmazonCloud{InstanceType: "t3a.large"})

	ip := "203.0.113.10"
	agent := &model.LoadAgent{ID: 1, Identifier: "i-1", PublicIPAddress: &ip}
	if err := b.StopAgent(hscontext.Background(), agent); err != nil {
		t.Fatalf("StopAgent: %v", err)
	}
	if len(f.stopCalls) != 1 {
		t.Fatalf("stopCalls = %v, want one call", f.stopCalls)
	}
	if agent.PublicIPAddress != nil {
		t.Fatal("expected PublicIPAddress to be cleared after stop")
	}
}

func TestTerminateAgentIsIdempotentOnAbsentInstance(t *testing.T) {
	b := testBackend(newFakeEC2(), &model.AmazonCloud{InstanceType: "t3a.large"})
	agent := &model.LoadAgent{ID: 1, Identifier: "i-gone"}
	if err := b.TerminateAgent(hscontext.Background(), agent); err != nil {
		t.Fatalf("TerminateAgent on an absent instance should be a no-op, got: %v", err)
	}
}

func TestTerminateAgentWithNoIdentifierIsNoOp(t *testing.T) {
	f := newFakeEC2()
	b := testBackend(f, &model.AmazonCloud{InstanceType: "t3a.large"})
	if err := b.TerminateAgent(hscontext.Background(), &model.LoadAgent{ID: 1}); err != nil {
		t.Fatalf("TerminateAgent: %v", err)
	}
	if len(f.terminateCalls) != 0 {
		t.Fatalf("terminateCalls = %v, want none for an agent with no host yet", f.terminateCalls)
	}
}
