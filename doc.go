/*
go-yolostream provides a real-time object detection pipeline for video frames.
It takes RGB frames from a capture source, letterbox resizes them into the
square input tensor a YOLO style Model expects, decodes the raw Model output
into bounding boxes, applies Non-Maximum Suppression, rescales the surviving
boxes back onto the original frame and renders the annotated result.

The numerical core lives in the preprocess and postprocess subpackages and is
free of any cross-frame state.  The pipeline subpackage wires the core to the
Frame Source, Model Runner and Display collaborators found in the source,
runner and display subpackages.

See the cmd/yolostream program for a complete application.
*/
package yolostream
